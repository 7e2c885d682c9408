package p2p

import (
	"context"
	"encoding/json"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/sirupsen/logrus"

	"github.com/starkfull/node/core/felt"
)

// BlockAnnouncement is the advisory gossip payload: "a new block may
// exist, go sync it." It is never trusted as proof of anything — the
// node always re-validates via the pull-based sync protocols in this
// package.
type BlockAnnouncement struct {
	Number     BlockNumber
	Hash       felt.Felt
	ParentHash felt.Felt
}

// Announcer publishes and observes BlockAnnouncements on a single
// pubsub topic, generalized from raw []byte topics to a typed
// announcement.
type Announcer struct {
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	log   *logrus.Entry
}

// NewAnnouncer joins the block-announce topic on ps.
func NewAnnouncer(ctx context.Context, ps *pubsub.PubSub, log *logrus.Entry) (*Announcer, error) {
	topic, err := ps.Join(ProtoBlockAnnounce)
	if err != nil {
		return nil, err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		_ = topic.Close()
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Announcer{topic: topic, sub: sub, log: log}, nil
}

// Announce publishes a new-block hint to the topic.
func (a *Announcer) Announce(ctx context.Context, ann BlockAnnouncement) error {
	b, err := json.Marshal(ann)
	if err != nil {
		return err
	}
	return a.topic.Publish(ctx, b)
}

// Next blocks until the next announcement on the topic or ctx is done.
// Announcements this node published itself are not filtered out.
func (a *Announcer) Next(ctx context.Context) (BlockAnnouncement, error) {
	msg, err := a.sub.Next(ctx)
	if err != nil {
		return BlockAnnouncement{}, err
	}
	var ann BlockAnnouncement
	if err := json.Unmarshal(msg.Data, &ann); err != nil {
		return BlockAnnouncement{}, err
	}
	return ann, nil
}

// Close cancels the subscription and leaves the topic.
func (a *Announcer) Close() {
	a.sub.Cancel()
	_ = a.topic.Close()
}
