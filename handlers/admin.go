package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"licensegate/logger"
	"licensegate/middleware"
	"licensegate/models"
	"licensegate/services"
	"licensegate/utils"
)

// AdminHandler serves the support/operator API.
type AdminHandler struct {
	responder
	admins      services.AdminService
	licenses    services.LicenseService
	activations services.ActivationService
	activity    services.ActivityLog
	tokens      *utils.TokenIssuer
}

func NewAdminHandler(
	admins services.AdminService,
	licenses services.LicenseService,
	activations services.ActivationService,
	activity services.ActivityLog,
	tokens *utils.TokenIssuer,
	production bool,
) *AdminHandler {
	return &AdminHandler{
		responder:   responder{production: production},
		admins:      admins,
		licenses:    licenses,
		activations: activations,
		activity:    activity,
		tokens:      tokens,
	}
}

// Login issues an admin bearer token
// @Summary Admin login
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.Result "missing_params"
// @Failure 401 {object} models.Result "unauthorized"
// @Failure 500 {object} models.Result "server_misconfigured"
// @Router /api/admin/login [post]
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, http.MethodPost)
		return
	}
	if h.tokens == nil {
		writeResult(w, http.StatusInternalServerError, models.Failure(models.ReasonServerMisconfigured, nil))
		return
	}

	var req models.LoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	admin, err := h.admins.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		kind := errorKind(err)
		logger.WithFields(requestFields(r, map[string]interface{}{
			"username": req.Username,
			"ip":       middleware.ClientIP(r),
			"reason":   kind,
		})).Warn("Login failed")
		h.fail(w, err, statusForKind(kind), nil)
		return
	}

	token, expiresAt, err := h.tokens.GenerateToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		logger.WithFields(requestFields(r, map[string]interface{}{"error": err.Error()})).Error("Failed to sign token")
		h.fail(w, err, http.StatusInternalServerError, nil)
		return
	}

	logger.WithFields(requestFields(r, map[string]interface{}{
		"admin_id": admin.ID,
		"username": admin.Username,
	})).Info("Admin logged in")
	writeResult(w, http.StatusOK, models.Success(models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Admin:     &admin,
	}))
}

// Licenses looks up (GET) or manually issues (POST) a license.
func (h *AdminHandler) Licenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetLicense(w, r)
	case http.MethodPost:
		h.CreateLicense(w, r)
	default:
		h.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// GetLicense returns a license with its device bindings
// @Summary Look up a license
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param key query string false "license key"
// @Param order_id query string false "order id"
// @Success 200 {object} models.LicenseDetail
// @Failure 400 {object} models.Result "missing_params"
// @Failure 404 {object} models.Result "not_found"
// @Router /api/admin/licenses [get]
func (h *AdminHandler) GetLicense(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	orderID := strings.TrimSpace(r.URL.Query().Get("order_id"))

	var (
		license models.License
		err     error
	)
	switch {
	case key != "":
		license, err = h.licenses.GetByKey(r.Context(), key)
	case orderID != "":
		license, err = h.licenses.GetByOrder(r.Context(), orderID)
	default:
		err = services.ErrMissingParams
	}
	if err != nil {
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	activations, err := h.activations.ListActivations(r.Context(), license.Key)
	if err != nil {
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	writeResult(w, http.StatusOK, models.Success(models.LicenseDetail{
		License:     license,
		Activations: activations,
		DevicesUsed: len(activations),
	}))
}

type createLicenseResponse struct {
	License models.License `json:"license"`
	Created bool           `json:"created"`
}

// CreateLicense issues a license by hand
// @Summary Issue a license manually
// @Description With an order_id the call is idempotent and returns the existing license.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateLicenseRequest true "license"
// @Success 201 {object} models.Result "created"
// @Success 200 {object} models.Result "already issued for the order"
// @Failure 400 {object} models.Result "missing_params"
// @Router /api/admin/licenses [post]
func (h *AdminHandler) CreateLicense(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLicenseRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	license, created, err := h.licenses.Issue(r.Context(), services.IssueRequest{
		OrderID:    req.OrderID,
		Email:      req.Email,
		Plan:       req.Plan,
		MaxDevices: req.MaxDevices,
	})
	if err != nil {
		logger.WithFields(requestFields(r, map[string]interface{}{
			"order_id": req.OrderID,
			"error":    err.Error(),
		})).Error("Manual issuance failed")
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	adminID, username, _ := middleware.AdminFromContext(r.Context())
	logger.WithFields(requestFields(r, map[string]interface{}{
		"admin_id": adminID,
		"username": username,
		"key":      license.Key,
		"created":  created,
	})).Info("License issued manually")

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeResult(w, status, models.Success(createLicenseResponse{License: license, Created: created}))
}

// Revoke disables a license
// @Summary Revoke a license
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.RevokeLicenseRequest true "key"
// @Success 200 {object} models.License
// @Failure 403 {object} models.Result "role not allowed"
// @Failure 404 {object} models.Result "not_found"
// @Router /api/admin/licenses/revoke [post]
func (h *AdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req models.RevokeLicenseRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	license, err := h.licenses.Revoke(r.Context(), req.Key)
	if err != nil {
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	adminID, username, _ := middleware.AdminFromContext(r.Context())
	logger.WithFields(requestFields(r, map[string]interface{}{
		"admin_id": adminID,
		"username": username,
		"key":      license.Key,
	})).Warn("License revoked by admin")
	writeResult(w, http.StatusOK, models.Success(license))
}

// DeviceLogs lists device activity for a license
// @Summary Device activity log
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param key query string true "license key"
// @Param limit query int false "max entries (default 100)"
// @Success 200 {array} models.DeviceActivityLog
// @Failure 400 {object} models.Result "missing_params"
// @Router /api/admin/devices/logs [get]
func (h *AdminHandler) DeviceLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}

	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		h.fail(w, services.ErrMissingParams, http.StatusBadRequest, nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.activity.List(r.Context(), key, limit)
	if err != nil {
		logger.WithFields(requestFields(r, map[string]interface{}{"error": err.Error()})).Error("Failed to list device logs")
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}
	writeResult(w, http.StatusOK, models.Success(logs))
}
