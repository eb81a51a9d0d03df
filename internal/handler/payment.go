package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-booking/internal/service"
)

// PaymentHandler serves checkout and refunds.
type PaymentHandler struct {
	Payments *service.PaymentService
}

func NewPaymentHandler(p *service.PaymentService) *PaymentHandler {
	if p == nil {
		panic("nil payment service passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: p}
}

// createOrderReq is either {"bookingId": ...} or a new booking body.
type createOrderReq struct {
	BookingID string `json:"bookingId"`
	newBookingReq
}

type orderResp struct {
	BookingID string `json:"bookingId"`
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

// CreateOrder handles POST /v1/payments/create-order.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	in := service.CreateOrderInput{BookingCode: strings.TrimSpace(req.BookingID)}
	if in.BookingCode == "" {
		if msg := req.validate(); msg != "" {
			return badRequest(c, msg)
		}
		if req.Guest == nil || strings.TrimSpace(req.Guest.Email) == "" {
			return badRequest(c, "guest email is required for online payment")
		}
		nb := req.toService(c)
		in.New = &nb
	} else if req.Date != "" || len(req.SlotIDs) > 0 {
		return badRequest(c, "provide either bookingId or a new booking, not both")
	}

	res, err := h.Payments.CreateOrder(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderResp{
		BookingID: res.Booking.Code,
		OrderID:   res.OrderID,
		Amount:    res.Amount,
		Currency:  res.Currency,
		Status:    res.Booking.Status,
	})
}

type verifyReq struct {
	BookingID string `json:"bookingId"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// Verify handles POST /v1/payments/verify.
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.BookingID == "" || req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return badRequest(c, "bookingId, orderId, paymentId and signature are required")
	}
	res, err := h.Payments.VerifyPayment(c.Request().Context(), service.VerifyInput{
		BookingCode: req.BookingID,
		OrderID:     req.OrderID,
		PaymentID:   req.PaymentID,
		Signature:   req.Signature,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment": res.Payment, "booking": res.Booking})
}

type refundReq struct {
	PaymentID    string       `json:"paymentId"`
	AmountRupees *json.Number `json:"amountRupees"`
}

// Refund handles POST /v1/admin/payments/refund.  Omitting amountRupees
// refunds the remaining balance.
func (h *PaymentHandler) Refund(c echo.Context) error {
	var req refundReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	in := service.RefundInput{PaymentID: strings.TrimSpace(req.PaymentID)}
	if in.PaymentID == "" {
		return badRequest(c, "paymentId is required")
	}
	if req.AmountRupees != nil {
		v, err := req.AmountRupees.Float64()
		if err != nil {
			return badRequest(c, "amountRupees must be a number")
		}
		in.AmountRupees = &v
	}
	res, err := h.Payments.RefundPayment(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment": res.Payment, "refund": res.Refund})
}
