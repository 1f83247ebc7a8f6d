package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/softadastra-group/softadastra-chat/internal/models"
	"github.com/softadastra-group/softadastra-chat/internal/repository"
)

// FeedService is the social feed: create posts, list them newest-first with
// author usernames resolved in one batch.
type FeedService struct {
	posts repository.FeedRepository
	users repository.UserRepository
}

func NewFeedService(posts repository.FeedRepository, users repository.UserRepository) *FeedService {
	return &FeedService{posts: posts, users: users}
}

func (s *FeedService) CreatePost(ctx context.Context, authorID uint, req *models.CreateFeedPostRequest) (*models.FeedPostResponse, error) {
	post := models.FeedPost{
		AuthorID: authorID,
		Body:     req.Body,
	}
	if len(req.ImageURLs) > 0 {
		data, err := json.Marshal(req.ImageURLs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode image urls: %w", err)
		}
		post.ImageURLs = string(data)
	}
	if err := s.posts.Create(ctx, &post); err != nil {
		return nil, err
	}

	names, err := s.users.UsernamesByID(ctx, []uint{authorID})
	if err != nil {
		names = map[uint]string{}
	}
	resp := feedPostResponse(&post, names)
	return &resp, nil
}

// ListPosts pages backwards from beforeID (0 means newest).
func (s *FeedService) ListPosts(ctx context.Context, beforeID uint, limit int) ([]models.FeedPostResponse, error) {
	posts, err := s.posts.ListRecent(ctx, beforeID, limit)
	if err != nil {
		return nil, err
	}

	authorIDs := make([]uint, 0, len(posts))
	seen := make(map[uint]struct{}, len(posts))
	for i := range posts {
		if _, ok := seen[posts[i].AuthorID]; !ok {
			seen[posts[i].AuthorID] = struct{}{}
			authorIDs = append(authorIDs, posts[i].AuthorID)
		}
	}
	names, err := s.users.UsernamesByID(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]models.FeedPostResponse, 0, len(posts))
	for i := range posts {
		out = append(out, feedPostResponse(&posts[i], names))
	}
	return out, nil
}

func feedPostResponse(p *models.FeedPost, names map[uint]string) models.FeedPostResponse {
	resp := models.FeedPostResponse{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Author:    names[p.AuthorID],
		Body:      p.Body,
		CreatedAt: p.CreatedAt,
	}
	if p.ImageURLs != "" {
		_ = json.Unmarshal([]byte(p.ImageURLs), &resp.ImageURLs)
	}
	return resp
}
