package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AstromanXD/Astricord-sub001/pkg/httputil"
	"github.com/AstromanXD/Astricord-sub001/pkg/middleware"
	"github.com/AstromanXD/Astricord-sub001/pkg/permissions"
)

// createServer handles POST /v1/servers. The caller becomes the owner.
func (s *Server) createServer(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	var req CreateServerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	server, err := s.store.CreateServer(r.Context(), req.Name, identity.UserID)
	if err != nil {
		s.log.WithError(err).Error("create server failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, server)
}

// addMember handles POST /v1/servers/{serverID}/members. An empty body
// joins the caller; adding someone else needs PermManageServer.
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	serverID := mux.Vars(r)["serverID"]

	var req AddMemberRequest
	if r.ContentLength != 0 && !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = identity.UserID
	}

	if userID != identity.UserID {
		set, err := s.resolver.ServerPermissions(r.Context(), serverID, identity.UserID)
		if err != nil {
			s.log.WithError(err).Error("permission check failed")
			httputil.WriteInternalError(w, err)
			return
		}
		if !set.Has(permissions.PermManageServer) {
			httputil.WriteErrorMessage(w, http.StatusForbidden, "Insufficient permissions")
			return
		}
	}

	if err := s.store.AddMember(r.Context(), serverID, userID); err != nil {
		s.log.WithError(err).Error("add member failed")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateUser(r, serverID, userID)
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"server_id": serverID,
		"user_id":   userID,
	})
}

// memberPermissions handles
// GET /v1/servers/{serverID}/members/{userID}/permissions. It is the
// decision surface other services call, so resolved sets are cached with
// a short TTL; mutations invalidate eagerly.
func (s *Server) memberPermissions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serverID, userID := vars["serverID"], vars["userID"]

	if s.cache != nil {
		if set, ok, err := s.cache.GetServerPermissions(r.Context(), serverID, userID); err == nil && ok {
			httputil.WriteSuccess(w, MemberPermissionsResponse{
				ServerID:    serverID,
				UserID:      userID,
				Permissions: set,
			})
			return
		}
	}

	set, err := s.resolver.ServerPermissions(r.Context(), serverID, userID)
	if err != nil {
		s.log.WithError(err).Error("resolve member permissions failed")
		httputil.WriteInternalError(w, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.SetServerPermissions(r.Context(), serverID, userID, set); err != nil {
			s.log.WithError(err).Warn("permission cache write failed")
		}
	}
	httputil.WriteSuccess(w, MemberPermissionsResponse{
		ServerID:    serverID,
		UserID:      userID,
		Permissions: set,
	})
}

// setTimeout handles PUT /v1/servers/{serverID}/members/{userID}/timeout.
// Guarded by PermModerateMembers.
func (s *Server) setTimeout(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serverID, userID := vars["serverID"], vars["userID"]

	var req SetTimeoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.store.SetMemberTimeout(r.Context(), serverID, userID, req.Until); err != nil {
		s.log.WithError(err).Error("set member timeout failed")
		httputil.WriteInternalError(w, err)
		return
	}
	s.publish("servers:"+serverID, "MEMBER_UPDATE", map[string]interface{}{
		"server_id":     serverID,
		"user_id":       userID,
		"timeout_until": req.Until,
	})
	httputil.WriteNoContent(w)
}

// createRole handles POST /v1/servers/{serverID}/roles. Guarded by
// PermManageRoles.
func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	serverID := mux.Vars(r)["serverID"]

	var req CreateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	role, err := s.store.CreateRole(r.Context(), serverID, req.Name, req.Permissions)
	if err != nil {
		s.log.WithError(err).Error("create role failed")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateServer(r, serverID)
	httputil.WriteCreated(w, role)
}

// deleteRole handles DELETE /v1/servers/{serverID}/roles/{roleID}.
// Built-in roles are refused with 409.
func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serverID, roleID := vars["serverID"], vars["roleID"]

	err := s.store.DeleteRole(r.Context(), roleID)
	if errors.Is(err, permissions.ErrBuiltInRole) {
		httputil.WriteErrorMessage(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.log.WithError(err).Error("delete role failed")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateServer(r, serverID)
	httputil.WriteNoContent(w)
}

// assignRole handles
// PUT /v1/servers/{serverID}/members/{userID}/roles/{roleID}.
func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serverID, userID, roleID := vars["serverID"], vars["userID"], vars["roleID"]

	if err := s.store.AssignRole(r.Context(), serverID, userID, roleID); err != nil {
		s.log.WithError(err).Error("assign role failed")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateUser(r, serverID, userID)
	httputil.WriteNoContent(w)
}

// unassignRole handles
// DELETE /v1/servers/{serverID}/members/{userID}/roles/{roleID}.
func (s *Server) unassignRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serverID, userID, roleID := vars["serverID"], vars["userID"], vars["roleID"]

	if err := s.store.UnassignRole(r.Context(), serverID, userID, roleID); err != nil {
		s.log.WithError(err).Error("unassign role failed")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateUser(r, serverID, userID)
	httputil.WriteNoContent(w)
}

func (s *Server) publish(topic, event string, payload interface{}) {
	if s.registry != nil {
		s.registry.Publish(topic, event, payload)
	}
}

func (s *Server) invalidateUser(r *http.Request, serverID, userID string) {
	s.invalidate(r.Context(), func(ctx context.Context) error {
		return s.cache.InvalidateUser(ctx, serverID, userID)
	})
}

func (s *Server) invalidateServer(r *http.Request, serverID string) {
	s.invalidate(r.Context(), func(ctx context.Context) error {
		return s.cache.InvalidateServer(ctx, serverID)
	})
}
