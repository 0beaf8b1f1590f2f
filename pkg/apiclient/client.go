// Package apiclient is a thin Go client for the AlgoForge REST API. The
// bearer credential is passed explicitly to every authenticated call.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"algoforge/internal/app/service"
	"algoforge/internal/domain/model"
)

// Credential is a bearer token issued by Register, Login or LoginWithGoogle.
// The zero value sends no Authorization header.
type Credential string

// Error is returned for every non-2xx response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("algoforge api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for baseURL, e.g. "http://localhost:8080". A nil
// httpClient gets a 15 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, cred Credential, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != "" {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// ----- users -----

func (c *Client) Register(ctx context.Context, req service.RegisterRequest) (*service.AuthResponse, error) {
	var out service.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/users", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req service.LoginRequest) (*service.AuthResponse, error) {
	var out service.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LoginWithGoogle(ctx context.Context, idToken string) (*service.GoogleAuthResponse, error) {
	var out service.GoogleAuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/google", "", service.GoogleLoginRequest{Token: idToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context, cred Credential) (*model.UserProfile, error) {
	var out model.UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/users/me", cred, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ----- content -----

func (c *Client) Paths(ctx context.Context) ([]model.LearningPath, error) {
	var out []model.LearningPath
	err := c.do(ctx, http.MethodGet, "/api/content/paths", "", nil, &out)
	return out, err
}

func (c *Client) Topics(ctx context.Context, pathID string) ([]model.Topic, error) {
	var out []model.Topic
	err := c.do(ctx, http.MethodGet, "/api/content/paths/"+url.PathEscape(pathID)+"/topics", "", nil, &out)
	return out, err
}

func (c *Client) AllTopics(ctx context.Context) ([]model.Topic, error) {
	var out []model.Topic
	err := c.do(ctx, http.MethodGet, "/api/content/topics", "", nil, &out)
	return out, err
}

func (c *Client) Topic(ctx context.Context, topicID string) (*model.Topic, error) {
	var out model.Topic
	if err := c.do(ctx, http.MethodGet, "/api/content/topics/"+url.PathEscape(topicID), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Problems(ctx context.Context, topicID string) ([]model.Problem, error) {
	var out []model.Problem
	err := c.do(ctx, http.MethodGet, "/api/content/topics/"+url.PathEscape(topicID)+"/problems", "", nil, &out)
	return out, err
}

func (c *Client) AllProblems(ctx context.Context) ([]model.Problem, error) {
	var out []model.Problem
	err := c.do(ctx, http.MethodGet, "/api/content/problems", "", nil, &out)
	return out, err
}

// ----- user actions -----

func (c *Client) SetStatus(ctx context.Context, cred Credential, problemID string, status model.ProblemStatus) (*model.UserProblemState, error) {
	var out model.UserProblemState
	path := "/api/user-actions/problems/" + url.PathEscape(problemID) + "/status"
	if err := c.do(ctx, http.MethodPost, path, cred, service.SetStatusRequest{Status: string(status)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleBookmark(ctx context.Context, cred Credential, problemID string) (*model.UserProblemState, error) {
	var out model.UserProblemState
	path := "/api/user-actions/problems/" + url.PathEscape(problemID) + "/bookmark"
	if err := c.do(ctx, http.MethodPost, path, cred, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateNotes(ctx context.Context, cred Credential, problemID, notes string) (*model.UserProblemState, error) {
	var out model.UserProblemState
	path := "/api/user-actions/problems/" + url.PathEscape(problemID) + "/notes"
	if err := c.do(ctx, http.MethodPut, path, cred, service.UpdateNotesRequest{Notes: notes}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Progress(ctx context.Context, cred Credential) ([]model.UserProblemState, error) {
	var out []model.UserProblemState
	err := c.do(ctx, http.MethodGet, "/api/user-actions/progress", cred, nil, &out)
	return out, err
}

// ----- forum -----

type ListPostsOptions struct {
	Category string
	Sort     model.ForumSort
	Page     int
}

func (c *Client) ListPosts(ctx context.Context, opts ListPostsOptions) (*model.PostPage, error) {
	q := url.Values{}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Sort != "" {
		q.Set("sort", string(opts.Sort))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	path := "/api/forum"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out model.PostPage
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	var out model.Post
	if err := c.do(ctx, http.MethodGet, "/api/forum/"+url.PathEscape(postID), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePost(ctx context.Context, cred Credential, req service.CreatePostRequest) (*model.Post, error) {
	var out model.Post
	if err := c.do(ctx, http.MethodPost, "/api/forum", cred, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddReply(ctx context.Context, cred Credential, postID, content string) (*model.Post, error) {
	var out model.Post
	path := "/api/forum/" + url.PathEscape(postID) + "/reply"
	if err := c.do(ctx, http.MethodPost, path, cred, service.AddReplyRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TogglePostLike(ctx context.Context, cred Credential, postID string) (*model.LikeResult, error) {
	var out model.LikeResult
	if err := c.do(ctx, http.MethodPost, "/api/forum/"+url.PathEscape(postID)+"/like", cred, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleReplyLike(ctx context.Context, cred Credential, postID, replyID string) (*model.LikeResult, error) {
	var out model.LikeResult
	path := "/api/forum/" + url.PathEscape(postID) + "/replies/" + url.PathEscape(replyID) + "/like"
	if err := c.do(ctx, http.MethodPost, path, cred, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ----- leaderboard -----

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	path := "/api/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []model.LeaderboardEntry
	err := c.do(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

// ----- admin -----

func (c *Client) AdminStats(ctx context.Context, cred Credential) (*model.Stats, error) {
	var out model.Stats
	if err := c.do(ctx, http.MethodGet, "/api/admin/stats", cred, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminUsers(ctx context.Context, cred Credential) ([]model.User, error) {
	var out []model.User
	err := c.do(ctx, http.MethodGet, "/api/admin/users", cred, nil, &out)
	return out, err
}

func (c *Client) SetRole(ctx context.Context, cred Credential, userID, role string) (*model.User, error) {
	var out model.User
	path := "/api/admin/users/" + url.PathEscape(userID) + "/role"
	if err := c.do(ctx, http.MethodPut, path, cred, service.SetRoleRequest{Role: role}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePath(ctx context.Context, cred Credential, in service.PathInput) (*model.LearningPath, error) {
	var out model.LearningPath
	if err := c.do(ctx, http.MethodPost, "/api/admin/paths", cred, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePath(ctx context.Context, cred Credential, pathID string, in service.PathInput) (*model.LearningPath, error) {
	var out model.LearningPath
	if err := c.do(ctx, http.MethodPut, "/api/admin/paths/"+url.PathEscape(pathID), cred, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePath(ctx context.Context, cred Credential, pathID string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/paths/"+url.PathEscape(pathID), cred, nil, nil)
}

func (c *Client) CreateTopic(ctx context.Context, cred Credential, in service.TopicInput) (*model.Topic, error) {
	var out model.Topic
	if err := c.do(ctx, http.MethodPost, "/api/admin/topics", cred, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTopic(ctx context.Context, cred Credential, topicID string, in service.TopicInput) (*model.Topic, error) {
	var out model.Topic
	if err := c.do(ctx, http.MethodPut, "/api/admin/topics/"+url.PathEscape(topicID), cred, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTopic(ctx context.Context, cred Credential, topicID string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/topics/"+url.PathEscape(topicID), cred, nil, nil)
}

func (c *Client) CreateProblem(ctx context.Context, cred Credential, in service.ProblemInput) (*model.Problem, error) {
	var out model.Problem
	if err := c.do(ctx, http.MethodPost, "/api/admin/problems", cred, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProblem(ctx context.Context, cred Credential, problemID string, in service.ProblemInput) (*model.Problem, error) {
	var out model.Problem
	if err := c.do(ctx, http.MethodPut, "/api/admin/problems/"+url.PathEscape(problemID), cred, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProblem(ctx context.Context, cred Credential, problemID string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/problems/"+url.PathEscape(problemID), cred, nil, nil)
}

func (c *Client) SetPinned(ctx context.Context, cred Credential, postID string, pinned bool) (*model.Post, error) {
	var out model.Post
	path := "/api/admin/forum/" + url.PathEscape(postID) + "/pin"
	if err := c.do(ctx, http.MethodPut, path, cred, service.SetPinnedRequest{Pinned: pinned}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RebuildLeaderboard resets the XP projection from stored user totals and
// returns the number of users written.
func (c *Client) RebuildLeaderboard(ctx context.Context, cred Credential) (int, error) {
	var out struct {
		Users int `json:"users"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/leaderboard/rebuild", cred, nil, &out); err != nil {
		return 0, err
	}
	return out.Users, nil
}
