package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/geocode"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/service"
	"github.com/swifttiger/backend/internal/worker"
)

type CustomerRequest struct {
	Name   string   `json:"name" validate:"required,min=2,max=120"`
	Email  string   `json:"email" validate:"omitempty,email"`
	Phone  string   `json:"phone" validate:"omitempty,max=30"`
	Street string   `json:"street" validate:"required,max=200"`
	City   string   `json:"city" validate:"required,max=100"`
	State  string   `json:"state" validate:"required,max=100"`
	Zip    string   `json:"zip" validate:"required,max=20"`
	Lat    *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng    *float64 `json:"lng" validate:"omitempty,longitude"`
}

type ImportSummary struct {
	Parsed   int      `json:"parsed"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

func (h *Handler) CustomersList(c *gin.Context) {
	limit, offset := parsePagination(c)
	items, total, err := h.Store.ListCustomers(c.Request.Context(), c.Query("q"), limit, offset)
	if err != nil {
		h.storeError(c, err, "customers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) CustomerCreate(c *gin.Context) {
	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	customer, err := h.Store.CreateCustomer(c.Request.Context(), models.Customer{
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:  strings.TrimSpace(req.Phone),
		Street: strings.TrimSpace(req.Street),
		City:   strings.TrimSpace(req.City),
		State:  strings.TrimSpace(req.State),
		Zip:    strings.TrimSpace(req.Zip),
		Lat:    req.Lat,
		Lng:    req.Lng,
	})
	if err != nil {
		h.storeError(c, err, "customer")
		return
	}

	h.enqueueGeocode(c.Request.Context(), customer, false)
	h.audit(c, service.ActionCreate, "customer", idString(customer.ID), gin.H{"name": customer.Name})
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) CustomerGet(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	customer, err := h.Store.GetCustomer(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "customer")
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) CustomerUpdate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	existing, err := h.Store.GetCustomer(ctx, id)
	if err != nil {
		h.storeError(c, err, "customer")
		return
	}

	customer := existing
	customer.Name = strings.TrimSpace(req.Name)
	customer.Email = strings.ToLower(strings.TrimSpace(req.Email))
	customer.Phone = strings.TrimSpace(req.Phone)
	customer.Street = strings.TrimSpace(req.Street)
	customer.City = strings.TrimSpace(req.City)
	customer.State = strings.TrimSpace(req.State)
	customer.Zip = strings.TrimSpace(req.Zip)

	addressChanged := customer.Street != existing.Street || customer.City != existing.City ||
		customer.State != existing.State || customer.Zip != existing.Zip
	switch {
	case req.Lat != nil && req.Lng != nil:
		customer.Lat, customer.Lng = req.Lat, req.Lng
	case addressChanged:
		// old coordinates describe the old address
		customer.Lat, customer.Lng = nil, nil
	}

	updated, err := h.Store.UpdateCustomer(ctx, customer)
	if err != nil {
		h.storeError(c, err, "customer")
		return
	}

	h.enqueueGeocode(ctx, updated, addressChanged)
	h.audit(c, service.ActionUpdate, "customer", idString(updated.ID), gin.H{"address_changed": addressChanged})
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) CustomerDelete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteCustomer(c.Request.Context(), id); err != nil {
		if db.IsForeignKeyViolation(err) {
			writeError(c, http.StatusConflict, "CUSTOMER_HAS_JOBS", "Customer has jobs and cannot be deleted", nil)
			return
		}
		h.storeError(c, err, "customer")
		return
	}

	h.audit(c, service.ActionDelete, "customer", idString(id), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted"})
}

// CustomerGeocode forces a fresh coordinate lookup. With a worker the
// request is queued; without one it resolves inline.
func (h *Handler) CustomerGeocode(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	customer, err := h.Store.GetCustomer(ctx, id)
	if err != nil {
		h.storeError(c, err, "customer")
		return
	}

	if h.Distributor != nil {
		payload := &worker.PayloadGeocodeCustomer{CustomerID: customer.ID, Force: true}
		if err := h.Distributor.DistributeTaskGeocodeCustomer(ctx, payload, asynq.MaxRetry(5), asynq.Queue(worker.QueueDefault)); err != nil {
			h.Logger.Error().Err(err).Int64("customer_id", customer.ID).Msg("geocode enqueue failed")
			writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}

	query := geocode.BuildGeocodeQuery(customer.Street, customer.City, customer.State, customer.Zip)
	if query == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Customer has no address to geocode", nil)
		return
	}
	lat, lng, _, _, err := h.Geocoder.Geocode(ctx, query)
	if err != nil {
		if errors.Is(err, geocode.ErrNotFound) {
			writeError(c, http.StatusNotFound, "GEOCODE_NOT_FOUND", "No match for the customer address", nil)
			return
		}
		h.Logger.Error().Err(err).Int64("customer_id", customer.ID).Msg("geocode failed")
		writeError(c, http.StatusBadGateway, "GEOCODE_FAILED", "Geocoding service unavailable", nil)
		return
	}
	if err := h.Store.SetCustomerCoords(ctx, customer.ID, lat, lng); err != nil {
		h.storeError(c, err, "customer")
		return
	}

	customer, err = h.Store.GetCustomer(ctx, id)
	if err != nil {
		h.storeError(c, err, "customer")
		return
	}
	h.audit(c, service.ActionUpdate, "customer", idString(id), gin.H{"geocoded": true})
	c.JSON(http.StatusOK, customer)
}

// @Summary Import customers
// @Description Upload a customers CSV (name, email, phone, street, city, state, zip, optional lat/lng)
// @Tags customers
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "customers.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/customers/import [post]
func (h *Handler) CustomersImport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".csv") {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file must be .csv", nil)
		return
	}

	customers, parseErrors := parseCustomersCSV(fileHeader)
	summary := ImportSummary{
		Parsed:  len(customers),
		Skipped: len(parseErrors),
		Errors:  parseErrors,
	}
	if summary.Errors == nil {
		summary.Errors = []string{}
	}
	if len(customers) == 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "No valid rows in file", summary.Errors)
		return
	}

	ctx := c.Request.Context()
	inserted, err := h.Store.InsertCustomers(ctx, customers)
	if err != nil {
		h.storeError(c, err, "customers")
		return
	}
	summary.Inserted = int(inserted)

	// imported rows rarely carry coordinates
	if h.Distributor != nil {
		payload := &worker.PayloadGeocodeBackfill{Limit: len(customers)}
		if err := h.Distributor.DistributeTaskGeocodeBackfill(ctx, payload, asynq.Queue(worker.QueueDefault)); err != nil {
			h.Logger.Warn().Err(err).Msg("geocode backfill enqueue failed")
		}
	}

	h.audit(c, service.ActionImport, "customer", "", gin.H{"inserted": summary.Inserted, "skipped": summary.Skipped})
	c.JSON(http.StatusOK, summary)
}

// enqueueGeocode schedules coordinate resolution for a customer that
// needs it. With no worker configured it resolves in the background,
// best-effort: a failed lookup never fails the request that caused it.
func (h *Handler) enqueueGeocode(ctx context.Context, customer models.Customer, force bool) {
	if !geocode.ShouldGeocode(customer, force) {
		return
	}
	if h.Distributor != nil {
		payload := &worker.PayloadGeocodeCustomer{CustomerID: customer.ID, Force: force}
		if err := h.Distributor.DistributeTaskGeocodeCustomer(ctx, payload, asynq.MaxRetry(5), asynq.Queue(worker.QueueDefault)); err != nil {
			h.Logger.Warn().Err(err).Int64("customer_id", customer.ID).Msg("geocode enqueue failed")
		}
		return
	}
	if h.Geocoder == nil {
		return
	}
	query := geocode.BuildGeocodeQuery(customer.Street, customer.City, customer.State, customer.Zip)
	if query == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	go func() {
		defer cancel()
		lat, lng, _, _, err := h.Geocoder.Geocode(ctx, query)
		if err != nil {
			h.Logger.Warn().Err(err).Int64("customer_id", customer.ID).Msg("inline geocode failed")
			return
		}
		if err := h.Store.SetCustomerCoords(ctx, customer.ID, lat, lng); err != nil {
			h.Logger.Warn().Err(err).Int64("customer_id", customer.ID).Msg("coordinate update failed")
		}
	}()
}

func parseCustomersCSV(file *multipart.FileHeader) ([]models.Customer, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)

	var errs []string
	var out []models.Customer
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		name := getFieldAny(rec, index, "name", "customer", "customer_name")
		email := getFieldAny(rec, index, "email", "e-mail")
		phone := getFieldAny(rec, index, "phone", "phone_number", "tel")
		street := getFieldAny(rec, index, "street", "address", "address1", "street_address")
		city := getFieldAny(rec, index, "city", "town")
		state := getFieldAny(rec, index, "state", "province", "region")
		zip := getFieldAny(rec, index, "zip", "zipcode", "zip_code", "postal_code", "postcode")

		if name == "" || street == "" || city == "" {
			errs = append(errs, fmt.Sprintf("line %d: name, street and city are required", line))
			continue
		}

		customer := models.Customer{
			Name:   name,
			Email:  strings.ToLower(email),
			Phone:  phone,
			Street: street,
			City:   city,
			State:  state,
			Zip:    zip,
		}
		if lat, lng, ok := parseCoords(
			getFieldAny(rec, index, "lat", "latitude"),
			getFieldAny(rec, index, "lng", "lon", "longitude"),
		); ok {
			customer.Lat, customer.Lng = &lat, &lng
		}
		out = append(out, customer)
	}
	return out, errs
}

func parseCoords(latRaw, lngRaw string) (float64, float64, bool) {
	if latRaw == "" || lngRaw == "" {
		return 0, 0, false
	}
	lat, latErr := strconv.ParseFloat(latRaw, 64)
	lng, lngErr := strconv.ParseFloat(lngRaw, 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, hd := range headers {
		idx[normalizeHeader(hd)] = i
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func getFieldAny(rec []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getField(rec, idx, normalizeHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	return strings.ToLower(strings.TrimSpace(h))
}
