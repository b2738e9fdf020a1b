package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Details struct {
			JSON   string                `json:"json"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func bindRouter() *gin.Engine {
	r := gin.New()
	r.POST("/signup", func(ctx *gin.Context) {
		var req user.SignUpRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})
	return r
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(`{"email":"a@example.com","username":"ab","phone":"0911","password":"123"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d body=%s", w.Code, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code %s", resp.Error.Code)
	}

	want := map[string]string{"username": "min", "phone": "min", "password": "min"}
	got := map[string]string{}
	for _, f := range resp.Error.Details.Fields {
		got[f.Field] = f.Rule
	}
	for field, rule := range want {
		if got[field] != rule {
			t.Fatalf("field %s: got rule %q want %q (all=%v)", field, got[field], rule, got)
		}
	}
}

func TestBindJSON_SyntaxError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(`{"email":}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter().ServeHTTP(w, req)

	var resp bindErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusBadRequest || resp.Error.Details.JSON == "" {
		t.Fatalf("got %d body=%s", w.Code, w.Body.String())
	}
}
