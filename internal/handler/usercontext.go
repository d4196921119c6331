package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/psds-microservice/freshdesk-service/internal/errs"
	"github.com/psds-microservice/freshdesk-service/internal/model"
)

// Headers set by the gateway after it has authenticated the user.
const (
	HeaderUserEmail  = "X-User-Email"
	HeaderUserID     = "X-User-Id"
	HeaderUserName   = "X-User-Name"
	HeaderUserFields = "X-User-Fields"
	HeaderRequestID  = "X-Request-ID"
)

const requestContextKey = "freshdesk.request_context"

var validate = validator.New()

// UserContext builds the RequestContext for every call and rejects calls
// without a well-formed email or a user id before any upstream request is made.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		rc, err := buildRequestContext(c, requestID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"message": errs.PublicMessage(err)})
			return
		}
		c.Set(requestContextKey, rc)
		c.Next()
	}
}

func buildRequestContext(c *gin.Context, requestID string) (model.RequestContext, error) {
	email := strings.TrimSpace(c.GetHeader(HeaderUserEmail))
	if email == "" {
		return model.RequestContext{}, errs.Missing("email")
	}
	if err := validate.Var(email, "email"); err != nil {
		return model.RequestContext{}, errs.Invalid("Email")
	}
	// ownership checks compare against this id, never against request bodies
	userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if userID == "" {
		return model.RequestContext{}, errs.Missing("user_id")
	}

	profile := model.FieldBag{}
	if raw := strings.TrimSpace(c.GetHeader(HeaderUserFields)); raw != "" {
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			return model.RequestContext{}, errs.Invalid("user fields")
		}
	}
	name := strings.TrimSpace(c.GetHeader(HeaderUserName))
	if name == "" {
		if v, ok := profile["name"].(string); ok {
			name = v
		}
	}

	return model.RequestContext{
		Email:     email,
		UserID:    userID,
		Name:      name,
		Profile:   profile,
		RequestID: requestID,
	}, nil
}

// RequestContextFrom returns the context stored by UserContext.
func RequestContextFrom(c *gin.Context) model.RequestContext {
	v, _ := c.Get(requestContextKey)
	rc, _ := v.(model.RequestContext)
	return rc
}
