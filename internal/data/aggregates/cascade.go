package aggregates

import (
	"github.com/google/uuid"

	channelrepos "github.com/yungbote/bonfires-backend/internal/data/repos/channel"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

type cascadeRepos struct {
	Channels channelrepos.ChannelRepo
	Members  channelrepos.MemberRepo
	Settings channelrepos.SettingsRepo
	Messages channelrepos.MessageRepo
	Events   channelrepos.EventRepo
}

// CascadeCounts reports how many rows a channel deletion removed per table.
type CascadeCounts struct {
	Events   int64
	Messages int64
	Settings int64
	Members  int64
}

// cascadeDeleteChannel removes every row owned by channelID, dependents first.
// It must run inside the caller's transaction.
func cascadeDeleteChannel(dbc dbctx.Context, r cascadeRepos, channelID uuid.UUID) (CascadeCounts, error) {
	var out CascadeCounts
	if dbc.Tx == nil {
		return out, InvariantError("channel cascade requires a transaction")
	}
	var err error
	if out.Events, err = r.Events.DeleteByChannel(dbc, channelID); err != nil {
		return out, err
	}
	if out.Messages, err = r.Messages.DeleteByChannel(dbc, channelID); err != nil {
		return out, err
	}
	if out.Settings, err = r.Settings.DeleteByChannel(dbc, channelID); err != nil {
		return out, err
	}
	if out.Members, err = r.Members.DeleteByChannel(dbc, channelID); err != nil {
		return out, err
	}
	n, err := r.Channels.Delete(dbc, channelID)
	if err != nil {
		return out, err
	}
	if n != 1 {
		return out, RetryableError("channel changed concurrently")
	}
	return out, nil
}
