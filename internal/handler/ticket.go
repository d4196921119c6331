package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/freshdesk-service/internal/activity"
	"github.com/psds-microservice/freshdesk-service/internal/errs"
	"github.com/psds-microservice/freshdesk-service/internal/freshdesk"
	"github.com/psds-microservice/freshdesk-service/internal/kafka"
	"github.com/psds-microservice/freshdesk-service/internal/model"
	"github.com/psds-microservice/freshdesk-service/internal/service"
)

// Freshdesk rejects attachments above 20 MB in total.
const maxAttachmentBytes = 20 << 20

type TicketHandler struct {
	svc      service.TicketServicer
	events   kafka.TicketEventProducer
	activity activity.Recorder
	logger   *slog.Logger
}

func NewTicketHandler(svc service.TicketServicer, events kafka.TicketEventProducer, rec activity.Recorder, logger *slog.Logger) *TicketHandler {
	if rec == nil {
		rec = activity.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketHandler{svc: svc, events: events, activity: rec, logger: logger}
}

// param accepts both JSON strings and numbers: the widget posts ids as numbers.
type param string

func (p *param) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*p = ""
		return nil
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*p = param(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = param(n.String())
	return nil
}

type readTicketRequest struct {
	ID     param `json:"id" form:"id"`
	UserID param `json:"user_id" form:"user_id"`
}

type updateTicketRequest struct {
	Status param `json:"status" form:"status"`
	UserID param `json:"user_id" form:"user_id"`
}

type replyRequest struct {
	Body    string `json:"body" form:"body"`
	UserID  param  `json:"user_id" form:"user_id"`
	AgentID param  `json:"agent_id" form:"agent_id"`
}

// List godoc: GET /tickets?page_no=&order_by=
func (h *TicketHandler) List(c *gin.Context) {
	rc := RequestContextFrom(c)
	buckets, err := h.svc.ListTickets(c.Request.Context(), rc, c.Query("page_no"), c.Query("order_by"))
	if err != nil {
		h.fail(c, "list tickets", err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (h *TicketHandler) InitSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.InitSettings())
}

// NewForm returns the field schema of the new-ticket form.
func (h *TicketHandler) NewForm(c *gin.Context) {
	fields, err := h.svc.GetTicketFieldSchema(c.Request.Context())
	if err != nil {
		h.fail(c, "ticket fields", err)
		return
	}
	c.JSON(http.StatusOK, fields)
}

func (h *TicketHandler) Read(c *gin.Context) {
	var req readTicketRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "read ticket", err)
		return
	}
	detail, err := h.svc.ReadTicket(c.Request.Context(), RequestContextFrom(c), string(req.ID), string(req.UserID))
	if err != nil {
		h.fail(c, "read ticket", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *TicketHandler) Create(c *gin.Context) {
	rc := RequestContextFrom(c)
	form, err := bindTicketForm(c)
	if err != nil {
		h.fail(c, "create ticket", err)
		return
	}
	resp, err := h.svc.CreateTicket(c.Request.Context(), rc, form)
	var ticketID int64
	if resp != nil {
		ticketID = resp.ID()
	}
	h.track(c, model.OperationCreate, rc, ticketID, resp, err)
	if err != nil {
		h.fail(c, "create ticket", err)
		return
	}
	passthrough(c, resp)
}

func (h *TicketHandler) Update(c *gin.Context) {
	rc := RequestContextFrom(c)
	var req updateTicketRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "update ticket", err)
		return
	}
	id := c.Param("id")
	resp, err := h.svc.UpdateTicketStatus(c.Request.Context(), rc, id, string(req.UserID), string(req.Status))
	h.track(c, model.OperationUpdate, rc, parseID(id), resp, err)
	if err != nil {
		h.fail(c, "update ticket", err)
		return
	}
	passthrough(c, resp)
}

func (h *TicketHandler) Reply(c *gin.Context) {
	rc := RequestContextFrom(c)
	var req replyRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "reply ticket", err)
		return
	}
	files, err := formAttachments(c)
	if err != nil {
		h.fail(c, "reply ticket", err)
		return
	}
	id := c.Param("id")
	resp, err := h.svc.ReplyToTicket(c.Request.Context(), rc, model.Reply{
		TicketID:    id,
		UserID:      string(req.UserID),
		AgentID:     string(req.AgentID),
		Body:        req.Body,
		Attachments: files,
	})
	h.track(c, model.OperationReply, rc, parseID(id), resp, err)
	if err != nil {
		h.fail(c, "reply ticket", err)
		return
	}
	passthrough(c, resp)
}

// fail renders the error contract: domain errors keep their message,
// everything else is logged in full and shown as "Server Error".
func (h *TicketHandler) fail(c *gin.Context, op string, err error) {
	rc := RequestContextFrom(c)
	if errs.IsDomain(err) {
		h.logger.Warn(op, "request_id", rc.RequestID, "email", rc.Email, "error", err)
	} else {
		h.logger.Error(op, "request_id", rc.RequestID, "email", rc.Email, "error", err)
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"message": errs.PublicMessage(err)})
}

// track records a mutating call that reached the helpdesk and publishes
// an event when it succeeded. Validation failures are not recorded.
func (h *TicketHandler) track(c *gin.Context, op model.Operation, rc model.RequestContext, ticketID int64, resp *freshdesk.Response, err error) {
	var status int
	switch {
	case err == nil && resp != nil:
		status = resp.StatusCode
	default:
		var upstream *errs.UpstreamError
		if !errors.As(err, &upstream) {
			return
		}
		status = upstream.Status
	}

	// the row must be written even if the caller has already gone away
	ctx := context.WithoutCancel(c.Request.Context())
	if recErr := h.activity.Record(ctx, &model.Activity{
		Operation:  op,
		TicketID:   ticketID,
		Email:      rc.Email,
		UserID:     rc.UserID,
		StatusCode: status,
		RequestID:  rc.RequestID,
	}); recErr != nil {
		h.logger.Error("activity: record", "request_id", rc.RequestID, "operation", op, "error", recErr)
	}
	if err == nil {
		kafka.Async(h.events, kafka.NewTicketEvent(op, rc, ticketID, status))
	}
}

// passthrough writes the Freshdesk body and status code unchanged.
func passthrough(c *gin.Context, resp *freshdesk.Response) {
	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// bind decodes a JSON, urlencoded or multipart body. An empty body binds
// nothing so that the service reports the missing parameters by name.
func bind(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 && c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil
	}
	if err := c.ShouldBind(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.Invalid("request body")
	}
	return nil
}

func bindTicketForm(c *gin.Context) (model.TicketForm, error) {
	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm, gin.MIMEPOSTForm:
		return formTicketForm(c)
	}
	if c.Request.ContentLength == 0 {
		return model.TicketForm{Extra: model.FieldBag{}}, nil
	}
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil && !errors.Is(err, io.EOF) {
		return model.TicketForm{}, errs.Invalid("request body")
	}
	form := model.TicketForm{Extra: model.FieldBag{}}
	for k, v := range raw {
		switch k {
		case "subject":
			form.Subject, _ = v.(string)
		case "description":
			form.Description, _ = v.(string)
		case "custom_fields":
			if v == nil {
				continue
			}
			obj, ok := v.(map[string]any)
			if !ok {
				return model.TicketForm{}, errs.Invalid("custom_fields")
			}
			form.CustomFields = obj
		default:
			form.Extra[k] = v
		}
	}
	return form, nil
}

// formTicketForm reads a form body; custom_fields arrives as a JSON string.
func formTicketForm(c *gin.Context) (model.TicketForm, error) {
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		if _, err := c.MultipartForm(); err != nil {
			return model.TicketForm{}, errs.Invalid("request body")
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return model.TicketForm{}, errs.Invalid("request body")
	}

	form := model.TicketForm{Extra: model.FieldBag{}}
	for k, vs := range c.Request.PostForm {
		if len(vs) == 0 {
			continue
		}
		switch k {
		case "subject":
			form.Subject = vs[0]
		case "description":
			form.Description = vs[0]
		case "custom_fields":
			if strings.TrimSpace(vs[0]) == "" {
				continue
			}
			var obj map[string]any
			if err := json.Unmarshal([]byte(vs[0]), &obj); err != nil || obj == nil {
				return model.TicketForm{}, errs.Invalid("custom_fields")
			}
			form.CustomFields = obj
		default:
			if len(vs) == 1 {
				form.Extra[k] = vs[0]
			} else {
				form.Extra[k] = vs
			}
		}
	}

	files, err := formAttachments(c)
	if err != nil {
		return model.TicketForm{}, err
	}
	form.Attachments = files
	return form, nil
}

// formAttachments collects uploads sent as attachments[] (or attachments).
func formAttachments(c *gin.Context) ([]model.Attachment, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil
	}
	mf, err := c.MultipartForm()
	if err != nil {
		return nil, errs.Invalid("request body")
	}
	var headers []*multipart.FileHeader
	headers = append(headers, mf.File["attachments[]"]...)
	headers = append(headers, mf.File["attachments"]...)
	return readAttachments(headers)
}

func readAttachments(headers []*multipart.FileHeader) ([]model.Attachment, error) {
	var total int64
	out := make([]model.Attachment, 0, len(headers))
	for _, fh := range headers {
		total += fh.Size
		if total > maxAttachmentBytes {
			return nil, errs.Invalid("attachments")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open attachment %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", fh.Filename, err)
		}
		out = append(out, model.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return out, nil
}

func parseID(s string) int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return id
}
