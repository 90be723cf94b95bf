package controllers

import (
	"net/http"

	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	"github.com/angelmondragon/fulfillment-backend/api/responses"
	"github.com/angelmondragon/fulfillment-backend/api/validators"
	"github.com/angelmondragon/fulfillment-backend/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

const maxNotesLength = 1000

type fulfillRequest struct {
	DeliveryDate *string `json:"delivery_date"`
	Notes        *string `json:"notes" validate:"omitempty,max=1000"`
	Condition    string  `json:"condition" validate:"omitempty,oneof=good damaged defective"`
}

type cancelBackorderRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// FulfillSalesOrder runs one fulfillment pass over a sales order.
func FulfillSalesOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		salesOrderID, err := validators.ParseUUIDParam(r, "salesOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		meta, err := fulfillMeta(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Fulfill(r.Context(), salesOrderID, meta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, resultStatus(result), result)
	}
}

// FulfillBackorder ships whatever open backorder quantity stock now covers.
func FulfillBackorder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		backorderID, err := validators.ParseUUIDParam(r, "backorderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		meta, err := fulfillMeta(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.FulfillBackorder(r.Context(), backorderID, meta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, resultStatus(result), result)
	}
}

func CancelBackorder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		backorderID, err := validators.ParseUUIDParam(r, "backorderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelBackorderRequest
		if hasBody(r) {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		backorder, err := svc.CancelBackorder(r.Context(), backorderID, validators.SanitizeString(req.Reason, 500), requestMeta(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, backorder)
	}
}

func fulfillMeta(r *http.Request) (fulfillment.RequestMeta, error) {
	meta := requestMeta(r)
	if !hasBody(r) {
		return meta, nil
	}

	var req fulfillRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		return meta, err
	}
	date, err := validators.ParseDate(req.DeliveryDate, "delivery_date")
	if err != nil {
		return meta, err
	}
	meta.Date = date
	meta.Notes = validators.SanitizeOptional(req.Notes, maxNotesLength)
	if req.Condition != "" {
		condition, err := enums.ParseItemCondition(req.Condition)
		if err != nil {
			return meta, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid condition")
		}
		meta.Condition = condition
	}
	return meta, nil
}

func requestMeta(r *http.Request) fulfillment.RequestMeta {
	return fulfillment.RequestMeta{
		ActorID:   middleware.ActorIDFromContext(r.Context()),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}

// resultStatus is 201 when the run persisted a document.
func resultStatus(result *fulfillment.Result) int {
	if result != nil && (result.DeliveryOrder != nil || result.Backorder != nil) {
		return http.StatusCreated
	}
	return http.StatusOK
}
