package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
	"github.com/atvirokodosprendimai/civicregistry/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	dateFormat             = "2006-01-02"
	principalCtxKey ctxKey = "principal"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	persons *usecase.PersonService
	auth    *usecase.AuthService
	audit   *usecase.AuditService
}

func NewHandler(persons *usecase.PersonService, auth *usecase.AuthService, audit *usecase.AuditService) *Handler {
	return &Handler{persons: persons, auth: auth, audit: audit}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Post("/api/v1/auth/register", h.register)
	r.Post("/api/v1/auth/login", h.login)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAuth)
		pr.Post("/api/v1/persons", h.createPerson)
		pr.Get("/api/v1/persons", h.listPersons)
		pr.Get("/api/v1/persons/search", h.searchPersons)
		pr.Get("/api/v1/persons/{id}", h.getPerson)
		pr.Put("/api/v1/persons/{id}", h.replacePerson)
		pr.Patch("/api/v1/persons/{id}", h.mergePerson)
		pr.Delete("/api/v1/persons/{id}", h.deletePerson)
		pr.Get("/api/v1/persons/{id}/audit", h.personAudit)
	})

	return r
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         string `json:"role"`
}

type personRequest struct {
	Title            string `json:"title"`
	FirstName        string `json:"first_name"`
	MiddleName       string `json:"middle_name"`
	LastName         string `json:"last_name"`
	MaidenName       string `json:"maiden_name"`
	DateOfBirth      string `json:"date_of_birth"`
	Gender           string `json:"gender"`
	Citizenship      string `json:"citizenship"`
	Street           string `json:"street"`
	HouseNumber      string `json:"house_number"`
	PostalCode       string `json:"postal_code"`
	City             string `json:"city"`
	Country          string `json:"country"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	MobilePhone      string `json:"mobile_phone"`
	MaritalStatus    string `json:"marital_status"`
	BirthPlace       string `json:"birth_place"`
	NationalIDNumber string `json:"national_id_number"`
	TaxID            string `json:"tax_id"`
}

func (req personRequest) toDomain() (domain.Person, error) {
	person := domain.Person{
		Title:            req.Title,
		FirstName:        req.FirstName,
		MiddleName:       req.MiddleName,
		LastName:         req.LastName,
		MaidenName:       req.MaidenName,
		Gender:           domain.Gender(req.Gender),
		Citizenship:      req.Citizenship,
		Street:           req.Street,
		HouseNumber:      req.HouseNumber,
		PostalCode:       req.PostalCode,
		City:             req.City,
		Country:          req.Country,
		Email:            strings.TrimSpace(req.Email),
		Phone:            req.Phone,
		MobilePhone:      req.MobilePhone,
		MaritalStatus:    domain.MaritalStatus(req.MaritalStatus),
		BirthPlace:       req.BirthPlace,
		NationalIDNumber: strings.TrimSpace(req.NationalIDNumber),
		TaxID:            strings.TrimSpace(req.TaxID),
	}
	if req.DateOfBirth != "" {
		parsed, err := time.ParseInLocation(dateFormat, req.DateOfBirth, time.UTC)
		if err != nil {
			return domain.Person{}, &domain.ValidationError{Field: "date_of_birth", Reason: "must be formatted YYYY-MM-DD"}
		}
		person.DateOfBirth = parsed
	}
	return person, nil
}

type personPatchRequest struct {
	Title            *string `json:"title"`
	FirstName        *string `json:"first_name"`
	MiddleName       *string `json:"middle_name"`
	LastName         *string `json:"last_name"`
	MaidenName       *string `json:"maiden_name"`
	DateOfBirth      *string `json:"date_of_birth"`
	Gender           *string `json:"gender"`
	Citizenship      *string `json:"citizenship"`
	Street           *string `json:"street"`
	HouseNumber      *string `json:"house_number"`
	PostalCode       *string `json:"postal_code"`
	City             *string `json:"city"`
	Country          *string `json:"country"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	MobilePhone      *string `json:"mobile_phone"`
	MaritalStatus    *string `json:"marital_status"`
	BirthPlace       *string `json:"birth_place"`
	NationalIDNumber *string `json:"national_id_number"`
	TaxID            *string `json:"tax_id"`
}

func (req personPatchRequest) toDomain() (domain.PersonPatch, error) {
	patch := domain.PersonPatch{
		Title:            req.Title,
		FirstName:        req.FirstName,
		MiddleName:       req.MiddleName,
		LastName:         req.LastName,
		MaidenName:       req.MaidenName,
		Citizenship:      req.Citizenship,
		Street:           req.Street,
		HouseNumber:      req.HouseNumber,
		PostalCode:       req.PostalCode,
		City:             req.City,
		Country:          req.Country,
		Email:            req.Email,
		Phone:            req.Phone,
		MobilePhone:      req.MobilePhone,
		BirthPlace:       req.BirthPlace,
		NationalIDNumber: req.NationalIDNumber,
		TaxID:            req.TaxID,
	}
	if req.Gender != nil {
		gender := domain.Gender(*req.Gender)
		patch.Gender = &gender
	}
	if req.MaritalStatus != nil {
		status := domain.MaritalStatus(*req.MaritalStatus)
		patch.MaritalStatus = &status
	}
	if req.DateOfBirth != nil {
		if *req.DateOfBirth == "" {
			// Blanking the mandatory birth date is ignored, like any other
			// attempt to null a mandatory field in a merge.
			return patch, nil
		}
		parsed, err := time.ParseInLocation(dateFormat, *req.DateOfBirth, time.UTC)
		if err != nil {
			return domain.PersonPatch{}, &domain.ValidationError{Field: "date_of_birth", Reason: "must be formatted YYYY-MM-DD"}
		}
		patch.DateOfBirth = &parsed
	}
	return patch, nil
}

type personResponse struct {
	ID               uint64 `json:"id"`
	Title            string `json:"title,omitempty"`
	FirstName        string `json:"first_name"`
	MiddleName       string `json:"middle_name,omitempty"`
	LastName         string `json:"last_name"`
	MaidenName       string `json:"maiden_name,omitempty"`
	DateOfBirth      string `json:"date_of_birth"`
	Gender           string `json:"gender,omitempty"`
	Citizenship      string `json:"citizenship,omitempty"`
	Street           string `json:"street,omitempty"`
	HouseNumber      string `json:"house_number,omitempty"`
	PostalCode       string `json:"postal_code,omitempty"`
	City             string `json:"city,omitempty"`
	Country          string `json:"country,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	MobilePhone      string `json:"mobile_phone,omitempty"`
	MaritalStatus    string `json:"marital_status,omitempty"`
	BirthPlace       string `json:"birth_place,omitempty"`
	NationalIDNumber string `json:"national_id_number,omitempty"`
	TaxID            string `json:"tax_id,omitempty"`
	FullName         string `json:"full_name"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	CreatedBy        string `json:"created_by"`
	UpdatedBy        string `json:"updated_by"`
	Deleted          bool   `json:"deleted"`
}

type auditEntryResponse struct {
	ID         int64           `json:"id"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	OccurredAt string          `json:"occurred_at"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, pair, err := h.auth.Register(r.Context(), usecase.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(user, pair))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, pair, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(user, pair))
}

func (h *Handler) createPerson(w http.ResponseWriter, r *http.Request) {
	actor := principalFromContext(r.Context())

	var req personRequest
	if !decodeValidatedBody(w, r, personSchema, &req) {
		return
	}

	candidate, err := req.toDomain()
	if err != nil {
		handleDomainError(w, err)
		return
	}

	person, err := h.persons.Create(r.Context(), candidate, actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPersonResponse(person))
}

func (h *Handler) getPerson(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	person, err := h.persons.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPersonResponse(person))
}

func (h *Handler) replacePerson(w http.ResponseWriter, r *http.Request) {
	actor := principalFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req personRequest
	if !decodeValidatedBody(w, r, personSchema, &req) {
		return
	}

	candidate, err := req.toDomain()
	if err != nil {
		handleDomainError(w, err)
		return
	}

	person, err := h.persons.Replace(r.Context(), id, candidate, actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPersonResponse(person))
}

func (h *Handler) mergePerson(w http.ResponseWriter, r *http.Request) {
	actor := principalFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req personPatchRequest
	if !decodeValidatedBody(w, r, personPatchSchema, &req) {
		return
	}

	patch, err := req.toDomain()
	if err != nil {
		handleDomainError(w, err)
		return
	}

	person, err := h.persons.Merge(r.Context(), id, patch, actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPersonResponse(person))
}

func (h *Handler) deletePerson(w http.ResponseWriter, r *http.Request) {
	actor := principalFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.persons.SoftDelete(r.Context(), id, actor); err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) listPersons(w http.ResponseWriter, r *http.Request) {
	actor := principalFromContext(r.Context())
	filter, ok := parseListFilter(w, r)
	if !ok {
		return
	}
	if filter.IncludeDeleted && actor.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "include_deleted requires the ADMIN role")
		return
	}

	page, err := h.persons.List(r.Context(), filter)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *Handler) searchPersons(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseListFilter(w, r)
	if !ok {
		return
	}

	page, err := h.persons.Search(r.Context(), r.URL.Query().Get("q"), filter)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *Handler) personAudit(w http.ResponseWriter, r *http.Request) {
	actor := principalFromContext(r.Context())
	if actor.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "audit trail requires the ADMIN role")
		return
	}

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	filter := domain.AuditFilter{Action: r.URL.Query().Get("action")}
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be integer")
			return
		}
		filter.AfterID = after
	}

	entries, err := h.audit.ListForPerson(r.Context(), id, filter)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, auditEntryResponse{
			ID:         entry.ID,
			Action:     entry.Action,
			Actor:      entry.Actor,
			Before:     entry.BeforeJSON,
			After:      entry.AfterJSON,
			OccurredAt: entry.OccurredAt.UTC().Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// requireAuth resolves the bearer token to a principal and stores it in the
// request context. Every handler behind this middleware receives an explicit
// actor; nothing reads ambient identity state.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		token := strings.TrimSpace(auth[7:])

		principal, err := h.auth.Identify(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), principalCtxKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func toAuthResponse(user domain.User, pair usecase.TokenPair) authResponse {
	return authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Role:         string(user.Role),
	}
}

func toPersonResponse(p domain.Person) personResponse {
	return personResponse{
		ID:               p.ID,
		Title:            p.Title,
		FirstName:        p.FirstName,
		MiddleName:       p.MiddleName,
		LastName:         p.LastName,
		MaidenName:       p.MaidenName,
		DateOfBirth:      p.DateOfBirth.UTC().Format(dateFormat),
		Gender:           string(p.Gender),
		Citizenship:      p.Citizenship,
		Street:           p.Street,
		HouseNumber:      p.HouseNumber,
		PostalCode:       p.PostalCode,
		City:             p.City,
		Country:          p.Country,
		Email:            p.Email,
		Phone:            p.Phone,
		MobilePhone:      p.MobilePhone,
		MaritalStatus:    string(p.MaritalStatus),
		BirthPlace:       p.BirthPlace,
		NationalIDNumber: p.NationalIDNumber,
		TaxID:            p.TaxID,
		FullName:         p.FullName(),
		CreatedAt:        p.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:        p.UpdatedAt.UTC().Format(timeFormat),
		CreatedBy:        p.CreatedBy,
		UpdatedBy:        p.UpdatedBy,
		Deleted:          p.Deleted,
	}
}

func toPageResponse(page domain.PersonPage) map[string]any {
	items := make([]personResponse, 0, len(page.Items))
	for _, person := range page.Items {
		items = append(items, toPersonResponse(person))
	}
	return map[string]any{
		"items": items,
		"total": page.Total,
		"page":  page.Page,
		"size":  page.Size,
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseListFilter(w http.ResponseWriter, r *http.Request) (domain.PersonListFilter, bool) {
	filter := domain.PersonListFilter{Page: 1}
	query := r.URL.Query()
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "page must be integer")
			return domain.PersonListFilter{}, false
		}
		filter.Page = page
	}
	if raw := query.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "size must be integer")
			return domain.PersonListFilter{}, false
		}
		filter.Size = size
	}
	filter.IncludeDeleted = query.Get("include_deleted") == "true"
	return filter, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var duplicateErr *domain.DuplicateError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &duplicateErr):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, usecase.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, usecase.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenMalformed):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func principalFromContext(ctx context.Context) domain.Principal {
	principal, _ := ctx.Value(principalCtxKey).(domain.Principal)
	return principal
}
