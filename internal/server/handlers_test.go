package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"rebound/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecks(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/health/live", 0, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, data := ts.do(t, http.MethodGet, "/health/ready", 0, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, data)
	assert.Equal(t, "healthy", body["status"])
}

func TestSwaggerDoc(t *testing.T) {
	ts := newTestServer(t)

	resp, data := ts.do(t, http.MethodGet, "/api/swagger/doc.json", 0, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	doc := decode[map[string]any](t, data)
	assert.Equal(t, "/api", doc["basePath"])

	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	for _, path := range []string{
		"/v1/posts/{postId}/reactions/heart",
		"/v1/posts/{postId}/comments",
		"/v1/comments/{commentId}",
		"/v1/reactions/toggle",
		"/v1/mypage/likes",
	} {
		assert.Contains(t, paths, path)
	}
}

func TestTogglePostHeart(t *testing.T) {
	ts := newTestServer(t)
	post := ts.post(t, 1)
	path := fmt.Sprintf("/api/v1/posts/%d/reactions/heart", post.ID)

	resp, data := ts.do(t, http.MethodPost, path, 0, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeUnauthenticated, errorCode(t, data))

	resp, data = ts.do(t, http.MethodPost, path, 2, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, LikeResponse{Liked: true, LikeCount: 1}, decode[LikeResponse](t, data))

	_, data = ts.do(t, http.MethodPost, path, 3, nil)
	assert.Equal(t, LikeResponse{Liked: true, LikeCount: 2}, decode[LikeResponse](t, data))

	_, data = ts.do(t, http.MethodPost, path, 2, nil)
	assert.Equal(t, LikeResponse{Liked: false, LikeCount: 1}, decode[LikeResponse](t, data))

	resp, data = ts.do(t, http.MethodPost, "/api/v1/posts/999/reactions/heart", 2, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, errorCode(t, data))

	resp, data = ts.do(t, http.MethodPost, "/api/v1/posts/abc/reactions/heart", 2, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[models.ErrorResponse](t, data).Error, "post ID")
}

func TestSetPostHeart_Idempotent(t *testing.T) {
	ts := newTestServer(t)
	post := ts.post(t, 1)
	path := fmt.Sprintf("/api/v1/posts/%d/reactions/heart", post.ID)

	for i := 0; i < 2; i++ {
		resp, data := ts.do(t, http.MethodPut, path, 5, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
		assert.Equal(t, LikeResponse{Liked: true, LikeCount: 1}, decode[LikeResponse](t, data))
	}
	for i := 0; i < 2; i++ {
		_, data := ts.do(t, http.MethodDelete, path, 5, nil)
		assert.Equal(t, LikeResponse{Liked: false, LikeCount: 0}, decode[LikeResponse](t, data))
	}
}

func TestBookmarks(t *testing.T) {
	ts := newTestServer(t)
	post := ts.post(t, 1)
	path := fmt.Sprintf("/api/v1/posts/%d/bookmarks", post.ID)

	resp, data := ts.do(t, http.MethodPost, path, 2, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, BookmarkResponse{Bookmarked: true, BookmarkCount: 1}, decode[BookmarkResponse](t, data))

	_, data = ts.do(t, http.MethodPut, path, 2, nil)
	assert.Equal(t, BookmarkResponse{Bookmarked: true, BookmarkCount: 1}, decode[BookmarkResponse](t, data))

	_, data = ts.do(t, http.MethodPost, path, 2, nil)
	assert.Equal(t, BookmarkResponse{Bookmarked: false, BookmarkCount: 0}, decode[BookmarkResponse](t, data))

	_, data = ts.do(t, http.MethodDelete, path, 2, nil)
	assert.Equal(t, BookmarkResponse{Bookmarked: false, BookmarkCount: 0}, decode[BookmarkResponse](t, data))
}

func TestMyInteractions(t *testing.T) {
	ts := newTestServer(t)
	post := ts.post(t, 1)

	ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/reactions/heart", post.ID), 2, nil)
	ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/reactions/heart", post.ID), 3, nil)
	ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/bookmarks", post.ID), 3, nil)

	path := fmt.Sprintf("/api/v1/posts/%d/my-interactions", post.ID)
	resp, data := ts.do(t, http.MethodGet, path, 2, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, models.InteractionState{Liked: true, Bookmarked: false, LikeCount: 2, BookmarkCount: 1},
		decode[models.InteractionState](t, data))

	resp, _ = ts.do(t, http.MethodGet, path, 0, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPostSummaries(t *testing.T) {
	ts := newTestServer(t)
	first := ts.post(t, 1)
	second := ts.post(t, 1)

	ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/reactions/heart", second.ID), 2, nil)
	ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", second.ID), 3, fiber.Map{"content": "same"})

	path := fmt.Sprintf("/api/v1/posts/summaries?ids=%d,%d,%d", second.ID, first.ID, second.ID)

	resp, data := ts.do(t, http.MethodGet, path, 2, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	body := decode[struct {
		Items []models.PostSummary `json:"items"`
	}](t, data)
	require.Len(t, body.Items, 2)
	assert.Equal(t, models.PostSummary{PostID: second.ID, LikeCount: 1, CommentCount: 1, Liked: true}, body.Items[0])
	assert.Equal(t, models.PostSummary{PostID: first.ID}, body.Items[1])

	_, data = ts.do(t, http.MethodGet, path, 0, nil)
	body = decode[struct {
		Items []models.PostSummary `json:"items"`
	}](t, data)
	require.Len(t, body.Items, 2)
	assert.False(t, body.Items[0].Liked)
	assert.Equal(t, int64(1), body.Items[0].LikeCount)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/posts/summaries?ids=1,x", 0, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	ids := make([]string, 0, 101)
	for i := 1; i <= 101; i++ {
		ids = append(ids, fmt.Sprint(i))
	}
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/posts/summaries?ids="+strings.Join(ids, ","), 0, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateComment(t *testing.T) {
	ts := newTestServer(t)
	post := ts.post(t, 1)
	path := fmt.Sprintf("/api/v1/posts/%d/comments", post.ID)

	resp, data := ts.do(t, http.MethodPost, path, 7, fiber.Map{"content": "  felt this  "})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))
	anon := decode[CommentResponse](t, data)
	assert.Equal(t, "felt this", anon.Content)
	assert.True(t, anon.IsAnonymous)
	assert.Nil(t, anon.MemberID)
	assert.Equal(t, "m*******", anon.AuthorName)
	assert.Equal(t, models.CommentPublic, anon.Status)

	resp, data = ts.do(t, http.MethodPost, path, 7, fiber.Map{"content": "me again", "isAnonymous": false, "parentCommentId": anon.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))
	reply := decode[CommentResponse](t, data)
	require.NotNil(t, reply.MemberID)
	assert.Equal(t, uint(7), *reply.MemberID)
	require.NotNil(t, reply.ParentCommentID)
	assert.Equal(t, anon.ID, *reply.ParentCommentID)

	tests := []struct {
		name   string
		body   fiber.Map
		status int
		code   string
	}{
		{"missing content", fiber.Map{}, fiber.StatusBadRequest, models.CodeValidation},
		{"blank content", fiber.Map{"content": "   "}, fiber.StatusBadRequest, models.CodeValidation},
		{"too long", fiber.Map{"content": strings.Repeat("x", 51)}, fiber.StatusBadRequest, models.CodeValidation},
		{"reply to reply", fiber.Map{"content": "nested", "parentCommentId": reply.ID}, fiber.StatusUnprocessableEntity, models.CodeInvalidReference},
		{"unknown parent", fiber.Map{"content": "orphan", "parentCommentId": 9999}, fiber.StatusUnprocessableEntity, models.CodeInvalidReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := ts.do(t, http.MethodPost, path, 7, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))
			assert.Equal(t, tt.code, errorCode(t, data))
		})
	}

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/posts/9999/comments", 7, fiber.Map{"content": "hi"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, path, 0, fiber.Map{"content": "hi"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestListComments_Pagination(t *testing.T) {
	ts := newTestServer(t)
	post := ts.post(t, 1)
	path := fmt.Sprintf("/api/v1/posts/%d/comments", post.ID)

	for i := 0; i < 5; i++ {
		resp, data := ts.do(t, http.MethodPost, path, 2, fiber.Map{"content": fmt.Sprintf("comment %d", i)})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))
	}

	type page struct {
		Items   []CommentResponse `json:"items"`
		HasNext bool              `json:"hasNext"`
		Page    int               `json:"page"`
		Size    int               `json:"size"`
	}

	resp, data := ts.do(t, http.MethodGet, path+"?page=0&size=2", 0, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	first := decode[page](t, data)
	require.Len(t, first.Items, 2)
	assert.True(t, first.HasNext)
	assert.Equal(t, "comment 0", first.Items[0].Content)

	_, data = ts.do(t, http.MethodGet, path+"?page=2&size=2", 0, nil)
	last := decode[page](t, data)
	require.Len(t, last.Items, 1)
	assert.False(t, last.HasNext)
	assert.Equal(t, "comment 4", last.Items[0].Content)

	resp, _ = ts.do(t, http.MethodGet, path+"?status=BOGUS", 0, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/posts/9999/comments", 0, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteComment(t *testing.T) {
	ts := newTestServer(t)
	post := ts.post(t, 1)
	commentsPath := fmt.Sprintf("/api/v1/posts/%d/comments", post.ID)

	_, data := ts.do(t, http.MethodPost, commentsPath, 2, fiber.Map{"content": "root"})
	root := decode[CommentResponse](t, data)
	_, data = ts.do(t, http.MethodPost, commentsPath, 3, fiber.Map{"content": "reply", "parentCommentId": root.ID})
	reply := decode[CommentResponse](t, data)

	rootPath := fmt.Sprintf("/api/v1/comments/%d", root.ID)

	resp, data := ts.do(t, http.MethodDelete, rootPath, 3, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, errorCode(t, data))

	resp, _ = ts.do(t, http.MethodDelete, rootPath, 2, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "soft", resp.Header.Get("X-Delete-Mode"))

	resp, data = ts.do(t, http.MethodDelete, rootPath, 2, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeConflict, errorCode(t, data))

	_, data = ts.do(t, http.MethodGet, commentsPath+"?status=DELETED", 0, nil)
	deleted := decode[struct {
		Items []CommentResponse `json:"items"`
	}](t, data)
	require.Len(t, deleted.Items, 1)
	assert.Equal(t, models.DeletedCommentPlaceholder, deleted.Items[0].Content)
	assert.NotNil(t, deleted.Items[0].DeletedAt)

	resp, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", reply.ID), 3, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "hard", resp.Header.Get("X-Delete-Mode"))

	resp, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", reply.ID), 3, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCommentHeartAndReplies(t *testing.T) {
	ts := newTestServer(t)
	post := ts.post(t, 1)
	commentsPath := fmt.Sprintf("/api/v1/posts/%d/comments", post.ID)

	_, data := ts.do(t, http.MethodPost, commentsPath, 2, fiber.Map{"content": "root"})
	root := decode[CommentResponse](t, data)
	ts.do(t, http.MethodPost, commentsPath, 3, fiber.Map{"content": "reply", "parentCommentId": root.ID})

	heart := fmt.Sprintf("/api/v1/comments/%d/reactions/heart", root.ID)
	resp, data := ts.do(t, http.MethodPost, heart, 4, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, LikeResponse{Liked: true, LikeCount: 1}, decode[LikeResponse](t, data))

	resp, data = ts.do(t, http.MethodPost, "/api/v1/reactions/toggle", 5, fiber.Map{
		"subjectKind": "comment", "subjectId": root.ID, "reactionType": "HEART",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, LikeResponse{Liked: true, LikeCount: 2}, decode[LikeResponse](t, data))

	_, data = ts.do(t, http.MethodGet, commentsPath+"/roots", 0, nil)
	roots := decode[struct {
		Items []CommentResponse `json:"items"`
	}](t, data)
	require.Len(t, roots.Items, 1)
	assert.Equal(t, int64(2), roots.Items[0].LikeCount)

	resp, data = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/comments/%d/replies", root.ID), 0, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	replies := decode[struct {
		Items []CommentResponse `json:"items"`
	}](t, data)
	require.Len(t, replies.Items, 1)
	assert.Equal(t, "reply", replies.Items[0].Content)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/comments/9999/reactions/heart", 4, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestToggleReaction_Validation(t *testing.T) {
	ts := newTestServer(t)
	post := ts.post(t, 1)

	resp, data := ts.do(t, http.MethodPost, "/api/v1/reactions/toggle", 2, fiber.Map{
		"subjectKind": "POST", "subjectId": post.ID,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, LikeResponse{Liked: true, LikeCount: 1}, decode[LikeResponse](t, data))

	tests := []struct {
		name string
		body fiber.Map
	}{
		{"unknown kind", fiber.Map{"subjectKind": "STORY", "subjectId": post.ID}},
		{"unknown reaction", fiber.Map{"subjectKind": "POST", "subjectId": post.ID, "reactionType": "CLAP"}},
		{"missing subject", fiber.Map{"subjectKind": "POST"}},
		{"missing kind", fiber.Map{"subjectId": post.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := ts.do(t, http.MethodPost, "/api/v1/reactions/toggle", 2, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, string(data))
			assert.Equal(t, models.CodeValidation, errorCode(t, data))
		})
	}
}

func TestMyPage(t *testing.T) {
	ts := newTestServer(t)
	first := ts.post(t, 1)
	second := ts.post(t, 1)

	ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/reactions/heart", first.ID), 2, nil)
	ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/reactions/heart", second.ID), 2, nil)
	ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/bookmarks", first.ID), 2, nil)
	ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", second.ID), 2, fiber.Map{"content": "ouch"})

	type idSlice struct {
		Items   []uint `json:"items"`
		HasNext bool   `json:"hasNext"`
	}

	resp, data := ts.do(t, http.MethodGet, "/api/v1/mypage/likes?size=1", 2, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	likes := decode[idSlice](t, data)
	assert.Equal(t, []uint{second.ID}, likes.Items)
	assert.True(t, likes.HasNext)

	_, data = ts.do(t, http.MethodGet, "/api/v1/mypage/bookmarks", 2, nil)
	assert.Equal(t, []uint{first.ID}, decode[idSlice](t, data).Items)

	_, data = ts.do(t, http.MethodGet, "/api/v1/mypage/comments", 2, nil)
	assert.Equal(t, []uint{second.ID}, decode[idSlice](t, data).Items)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/mypage/likes", 0, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
