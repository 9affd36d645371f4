package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	engagementModel "blog_engine/internal/domain/engagement/model"
	"blog_engine/internal/domain/post/model"
	"blog_engine/internal/domain/post/repository"
	"blog_engine/internal/domain/post/service"
	userModel "blog_engine/internal/domain/user/model"
	"blog_engine/internal/pkg/config"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/session"
	"blog_engine/internal/pkg/testdb"
	"blog_engine/internal/pkg/uploader"
	"blog_engine/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const longContent = "This body is comfortably longer than fifty characters so it validates."

func init() {
	gin.SetMode(gin.TestMode)
	config.GlobalConfig.JWT.Secret = "0123456789abcdef0123456789abcdef"
	config.GlobalConfig.JWT.Expire = 1
}

type env struct {
	db     *gorm.DB
	router *gin.Engine
	alice  string
	bob    string
}

func setup(t *testing.T) *env {
	db := testdb.Open(t,
		&userModel.User{}, &userModel.Profile{},
		&model.Post{}, &model.Category{}, &model.Tag{}, &model.Comment{},
		&engagementModel.Like{}, &engagementModel.Bookmark{},
	)
	storage, err := uploader.NewLocalStorage(t.TempDir(), "/media")
	require.NoError(t, err)

	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	h := NewPostHandler(
		service.NewPostService(postRepo, commentRepo, storage, service.Options{}),
		service.NewCommentService(postRepo, commentRepo),
		session.CookieTracker{},
		storage,
		5,
	)

	r := gin.New()
	r.Use(session.Middleware(config.SessionConfig{Secret: "secret", Name: "blog-session", MaxAge: 3600}))
	r.GET("/", h.Home)
	r.GET("/category/:slug/", h.Category)
	r.GET("/post/:id/", middleware.OptionalAuth(), h.Detail)
	auth := r.Group("", middleware.AuthMiddleware())
	auth.POST("/post/new/", h.Create)
	auth.POST("/post/:id/update/", h.Update)
	auth.POST("/post/:id/delete/", h.Delete)
	auth.POST("/post/:id/comment/", h.AddComment)
	auth.POST("/comment/:id/delete/", h.DeleteComment)
	auth.GET("/dashboard/posts/", h.Dashboard)

	e := &env{db: db, router: r}
	e.alice = e.token(t, "alice")
	e.bob = e.token(t, "bob")
	return e
}

func (e *env) token(t *testing.T, name string) string {
	u := &userModel.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, e.db.Create(u).Error)
	require.NoError(t, e.db.Create(&userModel.Profile{UserID: u.ID, Image: userModel.DefaultAvatar}).Error)
	tok, _, err := utils.GenerateToken(u.ID, u.Username)
	require.NoError(t, err)
	return tok
}

func (e *env) do(method, path, body, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) createPost(t *testing.T, token, extra string) uint {
	body := fmt.Sprintf(`{"title":"A perfectly valid title","content":%q%s}`, longContent, extra)
	w := e.do(http.MethodPost, "/post/new/", body, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data model.Post `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.ID
}

func viewsOf(t *testing.T, w *httptest.ResponseRecorder) int64 {
	var resp struct {
		Data struct {
			ViewsCount int64 `json:"viewsCount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.ViewsCount
}

func TestDetail_CountsOneViewPerSession(t *testing.T) {
	e := setup(t)
	id := e.createPost(t, e.alice, "")
	path := fmt.Sprintf("/post/%d/", id)

	w := e.do(http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), viewsOf(t, w))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = e.do(http.MethodGet, path, "", "", cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), viewsOf(t, w))

	// 新会话再计一次
	w = e.do(http.MethodGet, path, "", "")
	assert.Equal(t, int64(2), viewsOf(t, w))

	var stored model.Post
	require.NoError(t, e.db.First(&stored, id).Error)
	assert.Equal(t, int64(2), stored.ViewsCount)
}

func TestDetail_DraftVisibleToAuthorOnly(t *testing.T) {
	e := setup(t)
	id := e.createPost(t, e.alice, `,"action":"save_draft"`)
	path := fmt.Sprintf("/post/%d/", id)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, path, "", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, path, "", e.bob).Code)

	w := e.do(http.MethodGet, path, "", e.alice)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), viewsOf(t, w))

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/post/abc/", "", "").Code)
}

func TestCreate_Validation(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, "/post/new/", `{"title":"short","content":"`+longContent+`"}`, e.alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/post/new/", `{"title":"A perfectly valid title","content":"too short"}`, e.alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/post/new/", `{"title":"A perfectly valid title","content":"`+longContent+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreate_MultipartWithImage(t *testing.T) {
	e := setup(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	_ = mw.WriteField("title", "Multipart post title")
	_ = mw.WriteField("content", longContent)
	_ = mw.WriteField("tags", "go")
	_ = mw.WriteField("tags", "web")
	_ = mw.WriteField("category", "Tech")
	fw, err := mw.CreateFormFile("featured_image", "cover.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("not really a png"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/post/new/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.alice)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data model.Post `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "multipart-post-title", resp.Data.Slug)
	assert.True(t, strings.HasPrefix(resp.Data.FeaturedImage, uploader.PostImageDir+"/"))
	assert.Equal(t, "/media/"+resp.Data.FeaturedImage, resp.Data.FeaturedImageURL)
	assert.Len(t, resp.Data.Tags, 2)

	w = e.do(http.MethodGet, "/category/tech/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/category/missing/", "", "").Code)
}

func TestUpdateAndDelete_Ownership(t *testing.T) {
	e := setup(t)
	id := e.createPost(t, e.alice, "")
	update := fmt.Sprintf("/post/%d/update/", id)
	del := fmt.Sprintf("/post/%d/delete/", id)
	body := `{"title":"Updated title text","content":"` + longContent + `","action":"save_draft"}`

	w := e.do(http.MethodPost, update, body, e.bob)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, del, "", e.bob).Code)

	w = e.do(http.MethodPost, update, body, e.alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"draft"`)

	w = e.do(http.MethodGet, "/dashboard/posts/?status=draft", "", e.alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, del, "", e.alice).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, del, "", e.alice).Code)
}

func TestComments(t *testing.T) {
	e := setup(t)
	open := e.createPost(t, e.alice, "")
	closed := e.createPost(t, e.alice, `,"allowComments":false`)

	w := e.do(http.MethodPost, fmt.Sprintf("/post/%d/comment/", closed), `{"content":"hello there"}`, e.bob)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Comments are disabled for this post"}`, w.Body.String())

	w = e.do(http.MethodPost, fmt.Sprintf("/post/%d/comment/", open), `{"content":"x"}`, e.bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 表单提交
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/post/%d/comment/", open),
		strings.NewReader(url.Values{"content": {"great post"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+e.bob)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data model.Comment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	commentID := resp.Data.ID

	w = e.do(http.MethodPost, fmt.Sprintf("/post/%d/comment/", open), fmt.Sprintf(`{"content":"a reply","parentId":%d}`, commentID), e.alice)
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(http.MethodGet, fmt.Sprintf("/post/%d/", open), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"commentsCount":2`)

	// 文章作者删除读者评论
	w = e.do(http.MethodPost, fmt.Sprintf("/comment/%d/delete/", commentID), "", e.alice)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodPost, fmt.Sprintf("/comment/%d/delete/", commentID), "", e.alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHome(t *testing.T) {
	e := setup(t)
	e.createPost(t, e.alice, `,"tags":["go"]`)
	e.createPost(t, e.bob, `,"action":"save_draft"`)

	w := e.do(http.MethodGet, "/?sort=popular&tag=go", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data service.HomePage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Data.Posts.Total)
	assert.Equal(t, int64(1), resp.Data.Sidebar.TotalPosts)
	assert.Len(t, resp.Data.Trending, 1)
}
