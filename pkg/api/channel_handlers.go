package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/AstromanXD/Astricord-sub001/pkg/httputil"
	"github.com/AstromanXD/Astricord-sub001/pkg/middleware"
	"github.com/AstromanXD/Astricord-sub001/pkg/permissions"
)

// channelPermissions handles
// GET /v1/channels/{channelID}/members/{userID}/permissions, the
// channel-scoped decision surface. Like memberPermissions, resolved
// sets are cached with a short TTL; overwrite mutations invalidate the
// channel eagerly.
func (s *Server) channelPermissions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	channelID, userID := vars["channelID"], vars["userID"]

	if s.cache != nil {
		if set, ok, err := s.cache.GetChannelPermissions(r.Context(), channelID, userID); err == nil && ok {
			httputil.WriteSuccess(w, ChannelPermissionsResponse{
				ChannelID:   channelID,
				UserID:      userID,
				Permissions: set,
			})
			return
		}
	}

	set, err := s.resolver.ChannelPermissions(r.Context(), channelID, userID)
	if err != nil {
		s.log.WithError(err).Error("resolve channel permissions failed")
		httputil.WriteInternalError(w, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.SetChannelPermissions(r.Context(), channelID, userID, set); err != nil {
			s.log.WithError(err).Warn("permission cache write failed")
		}
	}
	httputil.WriteSuccess(w, ChannelPermissionsResponse{
		ChannelID:   channelID,
		UserID:      userID,
		Permissions: set,
	})
}

// createChannel handles POST /v1/servers/{serverID}/channels. Guarded by
// PermManageChannels.
func (s *Server) createChannel(w http.ResponseWriter, r *http.Request) {
	serverID := mux.Vars(r)["serverID"]

	var req CreateChannelRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	ch, err := s.store.CreateChannel(r.Context(), serverID, req.Name, req.Type)
	if err != nil {
		s.log.WithError(err).Error("create channel failed")
		httputil.WriteInternalError(w, err)
		return
	}
	s.publish("servers:"+serverID, "CHANNEL_CREATE", ch)
	httputil.WriteCreated(w, ch)
}

// listChannels handles GET /v1/servers/{serverID}/channels. The listing
// is visibility-filtered: a channel appears only when the caller's
// effective channel set includes PermViewChannel, so overwrite-hidden
// channels do not leak by name.
func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	serverID := mux.Vars(r)["serverID"]

	channels, err := s.store.ServerChannels(r.Context(), serverID)
	if err != nil {
		s.log.WithError(err).Error("list channels failed")
		httputil.WriteInternalError(w, err)
		return
	}

	visible := make([]permissions.Channel, 0, len(channels))
	for _, ch := range channels {
		set, err := s.resolver.ChannelPermissions(r.Context(), ch.ID, identity.UserID)
		if err != nil {
			s.log.WithError(err).Error("resolve channel visibility failed")
			httputil.WriteInternalError(w, err)
			return
		}
		if set.Has(permissions.PermViewChannel) {
			visible = append(visible, ch)
		}
	}
	httputil.WriteSuccess(w, visible)
}

// createMessage handles POST /v1/channels/{channelID}/messages. Guarded
// by PermSendMessages on the channel; timed-out members are refused even
// though they keep their roles. The message is fanned out and echoed,
// never stored; persistence belongs to the message service.
func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	channelID := mux.Vars(r)["channelID"]

	var req CreateMessageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Content, "content") {
		return
	}

	serverID, err := s.store.ChannelServer(r.Context(), channelID)
	if err != nil {
		s.log.WithError(err).Error("resolve channel server failed")
		httputil.WriteInternalError(w, err)
		return
	}
	until, err := s.store.MemberTimeout(r.Context(), serverID, identity.UserID)
	if err != nil {
		s.log.WithError(err).Error("query member timeout failed")
		httputil.WriteInternalError(w, err)
		return
	}
	if until != nil && until.After(time.Now()) {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "Member is timed out")
		return
	}

	msg := Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		AuthorID:  identity.UserID,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	s.publish("messages:"+channelID, "MESSAGE_CREATE", msg)
	httputil.WriteCreated(w, msg)
}

// upsertOverwrite handles
// PUT /v1/channels/{channelID}/overwrites/{targetID}. Guarded by
// PermManageRoles on the channel. The body's type field says whether the
// target ID names a role or a user.
func (s *Server) upsertOverwrite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	channelID, targetID := vars["channelID"], vars["targetID"]

	var req UpsertOverwriteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ow := permissions.Overwrite{
		ChannelID: channelID,
		Allow:     req.Allow,
		Deny:      req.Deny,
	}
	switch req.Type {
	case "role":
		ow.RoleID = targetID
	case "user":
		ow.UserID = targetID
	default:
		httputil.WriteValidationError(w, "type must be \"role\" or \"user\"")
		return
	}

	saved, err := s.store.UpsertOverwrite(r.Context(), ow)
	if err != nil {
		s.log.WithError(err).Error("upsert overwrite failed")
		httputil.WriteInternalError(w, err)
		return
	}

	s.invalidate(r.Context(), func(ctx context.Context) error {
		return s.cache.InvalidateChannel(ctx, channelID)
	})
	s.publish("channels:"+channelID, "CHANNEL_UPDATE", map[string]interface{}{
		"channel_id": channelID,
		"overwrite":  saved,
	})
	httputil.WriteSuccess(w, saved)
}

// deleteOverwrite handles
// DELETE /v1/channels/{channelID}/overwrites/{overwriteID}.
func (s *Server) deleteOverwrite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	channelID, overwriteID := vars["channelID"], vars["overwriteID"]

	if err := s.store.DeleteOverwrite(r.Context(), overwriteID); err != nil {
		s.log.WithError(err).Error("delete overwrite failed")
		httputil.WriteInternalError(w, err)
		return
	}

	s.invalidate(r.Context(), func(ctx context.Context) error {
		return s.cache.InvalidateChannel(ctx, channelID)
	})
	s.publish("channels:"+channelID, "CHANNEL_UPDATE", map[string]interface{}{
		"channel_id":           channelID,
		"overwrite_deleted_id": overwriteID,
	})
	httputil.WriteNoContent(w)
}
