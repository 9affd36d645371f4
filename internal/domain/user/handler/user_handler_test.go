package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"blog_engine/internal/domain/user/model"
	"blog_engine/internal/domain/user/repository"
	"blog_engine/internal/domain/user/service"
	"blog_engine/internal/pkg/config"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/testdb"
	"blog_engine/internal/pkg/uploader"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.GlobalConfig.JWT.Secret = "0123456789abcdef0123456789abcdef"
}

func setupRouter(t *testing.T) *gin.Engine {
	db := testdb.Open(t, &model.User{}, &model.Profile{})
	storage, err := uploader.NewLocalStorage(t.TempDir(), "/media")
	require.NoError(t, err)

	h := NewUserHandler(service.NewUserService(repository.NewUserRepository(db), storage, nil), storage, 5)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	p := r.Group("/profile", middleware.AuthMiddleware())
	p.GET("/", h.GetProfile)
	p.POST("/", h.UpdateProfile)
	return r
}

func doJSON(r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, username, password string) string {
	w := doJSON(r, http.MethodPost, "/auth/login", `{"username":"`+username+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data service.LoginResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.Token
}

func TestRegisterAndLogin(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"password123"}`, "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password123")

	w = doJSON(r, http.MethodPost, "/auth/register", `{"username":"alice","email":"other@example.com","password":"password123"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/register", `{"username":"bob","email":"not-an-email","password":"password123"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/login", `{"username":"alice","password":"wrong-password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := login(t, r, "alice", "password123")
	w = doJSON(r, http.MethodGet, "/profile/", "", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"alice@example.com"`)
}

func TestUpdateProfile(t *testing.T) {
	r := setupRouter(t)
	doJSON(r, http.MethodPost, "/auth/register", `{"username":"carol","email":"carol@example.com","password":"password123"}`, "")
	token := login(t, r, "carol", "password123")

	w := doJSON(r, http.MethodPost, "/profile/", `{"bio":"hello there","website":"https://carol.dev"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"bio":"hello there"`)
	assert.Contains(t, w.Body.String(), `"website":"https://carol.dev"`)

	w = doJSON(r, http.MethodPost, "/profile/", `{"website":"ftp://nope"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 头像扩展名不合法
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, _ := mw.CreateFormFile("image", "avatar.gif")
	_, _ = fw.Write([]byte("GIF89a"))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/profile/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileRequiresAuth(t *testing.T) {
	r := setupRouter(t)
	w := doJSON(r, http.MethodGet, "/profile/", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
