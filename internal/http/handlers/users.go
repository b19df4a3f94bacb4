package handlers

import (
	"context"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/geocoder89/accounthub/internal/config"
	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/geocoder89/accounthub/internal/http/middlewares"
	"github.com/geocoder89/accounthub/internal/service"
	"github.com/gin-gonic/gin"
)

type UsersHandler struct {
	profiles *service.ProfileService
}

func NewUsersHandler(profiles *service.ProfileService) *UsersHandler {
	return &UsersHandler{profiles: profiles}
}

type RegisterForm struct {
	Username string `form:"username" binding:"required"`
	Email    string `form:"email" binding:"required,email"`
	FullName string `form:"fullName" binding:"required"`
	Password string `form:"password" binding:"required,min=8"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

func (h *UsersHandler) Register(ctx *gin.Context) {
	var form RegisterForm

	if !BindForm(ctx, &form) {
		return
	}

	// uploads can be slow; generous bound compared to the JSON endpoints
	cctx, cancel := config.WithTimeout(45 * time.Second)

	defer cancel()

	created, appErr := h.profiles.Register(cctx, service.RegisterInput{
		FullName:   form.FullName,
		Email:      form.Email,
		Username:   form.Username,
		Password:   form.Password,
		Avatar:     formFile(ctx, "avatar"),
		CoverImage: formFile(ctx, "coverImage"),
	})

	if appErr != nil {
		RespondAppError(ctx, appErr)
		return
	}

	Respond(ctx, http.StatusCreated, created, "User registered successfully")
}

func (h *UsersHandler) ChangePassword(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	if appErr := h.profiles.ChangePassword(cctx, userID, req.OldPassword, req.NewPassword); appErr != nil {
		RespondAppError(ctx, appErr)
		return
	}

	Respond(ctx, http.StatusOK, nil, "Password changed successfully")
}

func (h *UsersHandler) CurrentUser(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	current, appErr := h.profiles.CurrentUser(cctx, userID)

	if appErr != nil {
		RespondAppError(ctx, appErr)
		return
	}

	RespondWithETag(ctx, http.StatusOK, current, "Current user fetched")
}

func (h *UsersHandler) UpdateAccountDetails(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	var req UpdateAccountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	updated, appErr := h.profiles.UpdateAccount(cctx, userID, req.FullName, req.Email)

	if appErr != nil {
		RespondAppError(ctx, appErr)
		return
	}

	Respond(ctx, http.StatusOK, updated, "Account details updated")
}

func (h *UsersHandler) UpdateAvatar(ctx *gin.Context) {
	h.updateImage(ctx, "avatar", h.profiles.UpdateAvatar, "Avatar updated")
}

func (h *UsersHandler) UpdateCoverImage(ctx *gin.Context) {
	h.updateImage(ctx, "coverImage", h.profiles.UpdateCoverImage, "Cover image updated")
}

func (h *UsersHandler) updateImage(
	ctx *gin.Context,
	field string,
	update func(ctx context.Context, userID string, fh *multipart.FileHeader) (*user.Public, *service.Error),
	message string,
) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(45 * time.Second)

	defer cancel()

	updated, appErr := update(cctx, userID, formFile(ctx, field))

	if appErr != nil {
		RespondAppError(ctx, appErr)
		return
	}

	Respond(ctx, http.StatusOK, updated, message)
}

// formFile is nil-safe: a missing part is reported by the service as a
// BadRequest, not by gin's error.
func formFile(ctx *gin.Context, field string) *multipart.FileHeader {
	fh, err := ctx.FormFile(field)

	if err != nil {
		return nil
	}

	return fh
}
