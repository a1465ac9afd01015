package notify

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

/*=====Bus=====*/

type Bus interface {
	Subscribe(ctx context.Context) *goredis.PubSub
}

/*=====Hub=====*/

type Hub interface {
	SendTo(userID int64, msg []byte) error
}
