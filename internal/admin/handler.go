package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cms-admin-service/internal/access"
	"cms-admin-service/internal/profile"
	"cms-admin-service/internal/provision"
)

// Flows is the provisioning surface the handlers call. Matches
// *provision.Service; tests substitute a fake.
type Flows interface {
	InviteUser(ctx context.Context, callerID, email string, role access.Role) (*provision.InviteResult, error)
	CreateUserDirectly(ctx context.Context, callerID, email, password string, role access.Role) (*provision.CreateResult, error)
	GetInviteLink(ctx context.Context, callerID, email string) (string, error)
	ResetUserPassword(ctx context.Context, callerID, userID, newPassword string) error
	DeleteUser(ctx context.Context, callerID, userID string) (*provision.DeleteResult, error)
}

type Handler struct {
	flows    Flows
	gate     *access.Gate
	profiles profile.Store
}

func NewHandler(flows Flows, gate *access.Gate, profiles profile.Store) *Handler {
	return &Handler{flows: flows, gate: gate, profiles: profiles}
}

func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/users", h.listUsers)
	g.POST("/users", h.createUser)
	g.POST("/users/invite", h.inviteUser)
	g.GET("/users/invite-link", h.inviteLink)
	g.POST("/users/:id/reset-password", h.resetPassword)
	g.DELETE("/users/:id", h.deleteUser)
}

func callerID(c *gin.Context) string {
	return c.GetString("userID")
}

type inviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

func (h *Handler) inviteUser(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	role, err := access.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.flows.InviteUser(c.Request.Context(), callerID(c), req.Email, role)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

type createRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	role, err := access.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.flows.CreateUserDirectly(c.Request.Context(), callerID(c), req.Email, req.Password, role)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *Handler) inviteLink(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	link, err := h.flows.GetInviteLink(c.Request.Context(), callerID(c), email)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invite_link": link})
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handler) resetPassword(c *gin.Context) {
	userID := c.Param("id")
	if _, err := uuid.Parse(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.flows.ResetUserPassword(c.Request.Context(), callerID(c), userID, req.Password); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) deleteUser(c *gin.Context) {
	userID := c.Param("id")
	if _, err := uuid.Parse(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	res, err := h.flows.DeleteUser(c.Request.Context(), callerID(c), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) listUsers(c *gin.Context) {
	if err := h.gate.EnsureRole(c.Request.Context(), callerID(c), access.RoleAdmin); err != nil {
		writeError(c, err)
		return
	}

	profiles, err := h.profiles.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]gin.H, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, gin.H{
			"id":         p.ID,
			"email":      p.Email,
			"full_name":  p.FullName,
			"avatar_url": p.AvatarURL,
			"role":       string(p.Role),
			"created_at": p.CreatedAt,
			"updated_at": p.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"users": out})
}
