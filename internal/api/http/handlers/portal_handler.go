package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-service/internal/api/dto"
	"github.com/spec-kit/portal-service/internal/domain"
	"github.com/spec-kit/portal-service/internal/service"
	"github.com/spec-kit/portal-service/pkg/util"
)

// PortalHandler exposes the captive-portal client surface.
type PortalHandler struct {
	auth   *service.AuthService
	status *service.StatusService
	logout *service.LogoutService
}

// NewPortalHandler constructs handler.
func NewPortalHandler(auth *service.AuthService, status *service.StatusService, logout *service.LogoutService) *PortalHandler {
	return &PortalHandler{auth: auth, status: status, logout: logout}
}

// Login handles POST /api/login (form-urlencoded).
func (h *PortalHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(dto.LoginResponse{OK: false, Error: "VALIDATION_FAILED"})
	}
	if req.Username == "" || req.Password == "" || req.MAC == "" {
		return c.Status(http.StatusBadRequest).JSON(dto.LoginResponse{OK: false, Error: "VALIDATION_FAILED"})
	}

	result, err := h.auth.Login(c.UserContext(), req.MAC, req.Username, req.Password)
	if err != nil {
		de := util.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(dto.LoginResponse{OK: false, Error: de.Code})
	}

	return c.JSON(dto.LoginResponse{OK: true, Token: result.Token})
}

// Status handles GET /status?mac=.
func (h *PortalHandler) Status(c *fiber.Ctx) error {
	status, err := h.status.GetStatus(c.UserContext(), c.Query("mac"))
	if err != nil {
		de := util.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(statusPayload(status))
	}
	return c.JSON(statusPayload(status))
}

// Logout handles POST /logout.
func (h *PortalHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil || req.MAC == "" {
		return c.Status(http.StatusBadRequest).JSON(dto.LogoutResponse{OK: false, Error: "VALIDATION_FAILED"})
	}

	if err := h.logout.Logout(c.UserContext(), req.MAC); err != nil {
		de := util.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(dto.LogoutResponse{OK: false, Error: de.Code})
	}
	return c.JSON(dto.LogoutResponse{OK: true})
}

// Heartbeat handles POST /api/heartbeat, renewing an active session.
func (h *PortalHandler) Heartbeat(c *fiber.Ctx) error {
	var req dto.HeartbeatRequest
	if err := c.BodyParser(&req); err != nil || req.MAC == "" {
		return c.Status(http.StatusBadRequest).JSON(dto.HeartbeatResponse{Authorized: false, Role: "-"})
	}

	status, token, err := h.auth.Heartbeat(c.UserContext(), req.MAC)
	if err != nil {
		de := util.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(dto.HeartbeatResponse{Authorized: false, Role: "-"})
	}

	return c.JSON(dto.HeartbeatResponse{
		Authorized: status.Authorized,
		Role:       status.Role,
		TTL:        status.TTLSeconds,
		Network:    networkPayload(status.Policy),
		Token:      token,
	})
}

// BatchStatus handles POST /api/batch_status for gateway reconciliation.
func (h *PortalHandler) BatchStatus(c *fiber.Ctx) error {
	var req dto.BatchStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(dto.BatchStatusResponse{Results: []dto.BatchStatusResult{}})
	}

	results := make([]dto.BatchStatusResult, 0, len(req.Entries))
	for _, entry := range req.Entries {
		status, err := h.status.GetStatus(c.UserContext(), entry.MAC)
		if err != nil {
			status = domain.UnauthorizedStatus()
		}
		results = append(results, dto.BatchStatusResult{
			MAC:        entry.MAC,
			Authorized: status.Authorized,
			Role:       status.Role,
			TTL:        status.TTLSeconds,
			Network:    networkPayload(status.Policy),
		})
	}
	return c.JSON(dto.BatchStatusResponse{Results: results})
}

func statusPayload(status domain.Status) dto.StatusResponse {
	return dto.StatusResponse{
		Authorized: status.Authorized,
		Role:       status.Role,
		TTL:        status.TTLSeconds,
		Network:    networkPayload(status.Policy),
	}
}

func networkPayload(policy domain.PolicySnapshot) dto.NetworkPayload {
	return dto.NetworkPayload{
		VLAN:   policy.VLAN,
		Policy: policy.PolicyName,
		IPSet:  policy.IPSet,
	}
}
