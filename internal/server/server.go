package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"account-service/internal/domain"
	"account-service/internal/service"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"
)

type Server struct {
	accountService service.AccountServiceInterface
	auditService   *service.AuditService
	db             *sql.DB
}

func NewServer(accountService service.AccountServiceInterface, auditService *service.AuditService, db *sql.DB) *Server {
	return &Server{
		accountService: accountService,
		auditService:   auditService,
		db:             db,
	}
}

func (s *Server) HealthCheck(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		log.WithField("error", err).Error("Health check failed: database is down")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection error",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) CreateAccount(c echo.Context) error {
	var req domain.CreateAccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	ctx := c.Request().Context()
	account, err := s.accountService.CreateAccount(ctx, req)
	if err != nil {
		log.WithError(err).Error("Failed to create account")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, account)
}

func (s *Server) GetAccount(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "account ID is required",
		})
	}

	ctx := c.Request().Context()
	account, err := s.accountService.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "account not found",
			})
		}
		log.WithError(err).WithField("account_id", id).Error("Failed to get account")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	return c.JSON(http.StatusOK, account)
}

func (s *Server) GetAccountByEmail(c echo.Context) error {
	email := c.Param("email")
	if email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "email is required",
		})
	}

	ctx := c.Request().Context()
	account, err := s.accountService.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "account not found",
			})
		}
		log.WithError(err).WithField("email", email).Error("Failed to get account by email")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	return c.JSON(http.StatusOK, account)
}

func (s *Server) UpdateAccount(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "account ID is required",
		})
	}

	var req domain.UpdateAccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	ctx := c.Request().Context()
	account, err := s.accountService.UpdateAccount(ctx, id, req)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "account not found",
			})
		}
		log.WithError(err).WithField("account_id", id).Error("Failed to update account")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, account)
}

func (s *Server) SuspendAccount(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "account ID is required",
		})
	}

	ctx := c.Request().Context()
	account, err := s.accountService.SuspendAccount(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "account not found",
			})
		}
		log.WithError(err).WithField("account_id", id).Error("Failed to suspend account")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	return c.JSON(http.StatusOK, account)
}

func (s *Server) CloseAccount(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "account ID is required",
		})
	}

	ctx := c.Request().Context()
	account, err := s.accountService.CloseAccount(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "account not found",
			})
		}
		log.WithError(err).WithField("account_id", id).Error("Failed to close account")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	return c.JSON(http.StatusOK, account)
}

func (s *Server) DeleteAccount(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "account ID is required",
		})
	}

	ctx := c.Request().Context()
	if err := s.accountService.DeleteAccount(ctx, id); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "account not found",
			})
		}
		log.WithError(err).WithField("account_id", id).Error("Failed to delete account")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ListAccounts(c echo.Context) error {
	limit := parseIntParam(c.QueryParam("limit"), 20)
	offset := parseIntParam(c.QueryParam("offset"), 0)

	ctx := c.Request().Context()
	accounts, err := s.accountService.ListAccounts(ctx, limit, offset)
	if err != nil {
		log.WithError(err).Error("Failed to list accounts")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	if accounts == nil {
		accounts = []domain.Account{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetAccountAudit returns the durable audit trail for one account.
func (s *Server) GetAccountAudit(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "account ID is required",
		})
	}

	limit := parseIntParam(c.QueryParam("limit"), 50)
	offset := parseIntParam(c.QueryParam("offset"), 0)

	ctx := c.Request().Context()
	events, err := s.auditService.History(ctx, id, limit, offset)
	if err != nil {
		log.WithError(err).WithField("account_id", id).Error("Failed to get audit history")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	if events == nil {
		events = []domain.AuditEvent{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"entity_id": id,
		"events":    events,
		"limit":     limit,
		"offset":    offset,
	})
}

func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
