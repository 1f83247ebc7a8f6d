package services

import (
	"context"

	"github.com/softadastra-group/softadastra-chat/internal/repository"
)

// LikeBroadcaster is the one-way callback into the likes hub; the toggle
// result is pushed to subscribed sockets after the transaction commits.
type LikeBroadcaster interface {
	BroadcastLikeUpdate(productID uint64, count int64)
}

// LikeService toggles product likes and fans the new count out over the
// websocket hub. It also serves as the hub's count source on subscribe.
type LikeService struct {
	repo        repository.LikeRepository
	broadcaster LikeBroadcaster
}

func NewLikeService(repo repository.LikeRepository, broadcaster LikeBroadcaster) *LikeService {
	return &LikeService{repo: repo, broadcaster: broadcaster}
}

// SetBroadcaster late-binds the hub; the hub needs the service as its count
// source, so one side has to be wired after construction. Call before
// serving traffic.
func (s *LikeService) SetBroadcaster(b LikeBroadcaster) {
	s.broadcaster = b
}

// Toggle flips the (product, user) like and returns the resulting state and
// total count. The broadcast happens only after the toggle committed, so
// subscribers never see a count the database does not hold.
func (s *LikeService) Toggle(ctx context.Context, productID uint64, userID uint) (liked bool, count int64, err error) {
	liked, count, err = s.repo.Toggle(ctx, productID, userID)
	if err != nil {
		return false, 0, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastLikeUpdate(productID, count)
	}
	return liked, count, nil
}

// CountLikes implements the likes hub's counter.
func (s *LikeService) CountLikes(ctx context.Context, productID uint64) (int64, error) {
	return s.repo.Count(ctx, productID)
}
