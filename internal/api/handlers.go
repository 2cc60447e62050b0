package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/locshare/server/internal/database"
	"github.com/locshare/server/internal/rtserver"
	"github.com/locshare/server/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateRoomRequest struct {
	RoomId      string `json:"room_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type SendInvitationRequest struct {
	RoomId        string `json:"room_id"`
	ReceiverEmail string `json:"receiver_email"`
}

type InvitationActionRequest struct {
	InvitationId int `json:"invitation_id"`
}

type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type SendMessageRequest struct {
	RoomId  string `json:"room_id"`
	Content string `json:"content"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *App) writeApiError(w http.ResponseWriter, errResp *ApiError) {
	s.writeJson(w, errResp.StatusCode, errResp)
}

func userFromRecord(u database.User) types.User {
	user := types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		IsOnline:     u.IsOnline,
		LastSeen:     u.LastSeen,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}

	if u.Latitude != nil && u.Longitude != nil && u.LocationUpdatedAt != nil {
		user.Location = &types.Position{
			Latitude:  *u.Latitude,
			Longitude: *u.Longitude,
			UpdatedAt: *u.LocationUpdatedAt,
		}
	}

	return user
}

func (s *App) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	newUser, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, userFromRecord(newUser))
}

func (s *App) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	if lr.Email == "" || lr.Password == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	dbUser, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	token, err := s.createJwtForSession(dbUser.Id, defaultJwtExpiration)
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, userFromRecord(dbUser))
}

func (s *App) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	s.writeJson(w, http.StatusOK, userFromRecord(user))
}

func (s *App) logout(w http.ResponseWriter, _ *http.Request) {
	// overwrite the session cookie with an already-expired empty one
	cookie := createJwtCookie("", -time.Hour)
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (s *App) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	if req.Name == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	newRoom, err := s.db.CreateRoom(database.CreateRoomParams{
		Name:        req.Name,
		Description: req.Description,
		CreatorId:   userId,
		ExternalId:  sid,
	})
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, types.Room{
		Id:          newRoom.Id,
		ExternalId:  newRoom.ExternalId,
		Name:        newRoom.Name,
		Description: newRoom.Description,
		CreatorId:   newRoom.CreatorId,
		CreatedAt:   newRoom.CreatedAt,
		UpdatedAt:   newRoom.UpdatedAt,
	})
}

func (s *App) listRooms(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	dbRooms, err := s.db.ListRoomsForUser(userId)
	if err != nil {
		s.log.Println("list rooms:", err)
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, dbRoom := range dbRooms {
		rooms = append(rooms, types.Room{
			Id:          dbRoom.Id,
			ExternalId:  dbRoom.ExternalId,
			Name:        dbRoom.Name,
			Description: dbRoom.Description,
			CreatorId:   dbRoom.CreatorId,
		})
	}

	s.writeJson(w, http.StatusOK, rooms)
}

// getRoom returns one room together with its member roster and each
// member's presence, so clients can render who is in the room and who
// is currently online.
func (s *App) getRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	room, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	if room.CreatorId != userId && !s.db.RoomMemberExists(room.Id, userId) {
		s.writeApiError(w, NewForbiddenError())
		return
	}

	full, err := s.db.GetRoomWithMembers(room.Id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	members := make([]types.User, 0, len(full.Members))
	for _, m := range full.Members {
		members = append(members, types.User{
			Id:       m.Id,
			Username: m.Username,
			IsOnline: m.IsOnline,
			LastSeen: m.LastSeen,
		})
	}

	s.writeJson(w, http.StatusOK, types.Room{
		Id:          full.Id,
		ExternalId:  full.ExternalId,
		Name:        full.Name,
		Description: full.Description,
		CreatorId:   full.CreatorId,
		Members:     members,
		CreatedAt:   full.CreatedAt,
		UpdatedAt:   full.UpdatedAt,
	})
}

func (s *App) updateRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	var req UpdateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	if req.RoomId == "" || req.Name == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	room, err := s.db.GetRoomByExternalId(req.RoomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	if room.CreatorId != userId {
		s.writeApiError(w, NewForbiddenError())
		return
	}

	updated, err := s.db.UpdateRoom(database.UpdateRoomParams{
		RoomId:      room.Id,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, types.Room{
		Id:          updated.Id,
		ExternalId:  updated.ExternalId,
		Name:        updated.Name,
		Description: updated.Description,
		CreatorId:   updated.CreatorId,
		CreatedAt:   updated.CreatedAt,
		UpdatedAt:   updated.UpdatedAt,
	})
}

func (s *App) deleteRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	room, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	if room.CreatorId != userId {
		s.writeApiError(w, NewForbiddenError())
		return
	}

	if err := s.db.DeleteRoom(room.Id); err != nil {
		s.log.Println("delete room:", err)
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *App) sendInvitation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	var req SendInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	if req.RoomId == "" || req.ReceiverEmail == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	room, err := s.db.GetRoomByExternalId(req.RoomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	// only the room creator can invite
	if room.CreatorId != userId {
		s.writeApiError(w, NewForbiddenError())
		return
	}

	receiver, err := s.db.GetAccountByEmail(req.ReceiverEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	if receiver.Id == userId {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	if s.db.RoomMemberExists(room.Id, receiver.Id) {
		s.writeApiError(w, NewConflictError())
		return
	}

	if s.db.PendingInvitationExists(room.Id, req.ReceiverEmail) {
		s.writeApiError(w, NewConflictError())
		return
	}

	inv, err := s.db.CreateInvitation(database.CreateInvitationParams{
		RoomId:        room.Id,
		SenderId:      userId,
		ReceiverEmail: req.ReceiverEmail,
	})
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, types.Invitation{
		Id:            inv.Id,
		RoomId:        inv.RoomId,
		SenderId:      inv.SenderId,
		ReceiverEmail: inv.ReceiverEmail,
		Status:        inv.Status,
		CreatedAt:     inv.CreatedAt,
	})
}

func (s *App) listInvitations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	invs, err := s.db.ListInvitationsForEmail(user.EmailAddress)
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, invitationsResponse(invs))
}

func (s *App) listSentInvitations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	invs, err := s.db.ListPendingSentInvitations(userId)
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, invitationsResponse(invs))
}

func invitationsResponse(invs []database.Invitation) []types.Invitation {
	out := make([]types.Invitation, 0, len(invs))
	for _, inv := range invs {
		out = append(out, types.Invitation{
			Id:            inv.Id,
			RoomId:        inv.RoomId,
			RoomName:      inv.RoomName,
			SenderId:      inv.SenderId,
			SenderName:    inv.SenderName,
			ReceiverEmail: inv.ReceiverEmail,
			Status:        inv.Status,
			CreatedAt:     inv.CreatedAt,
		})
	}
	return out
}

// resolvePendingInvitation loads the invitation and checks the caller
// is its receiver and it has not been processed yet.
func (s *App) resolvePendingInvitation(w http.ResponseWriter, r *http.Request) (database.Invitation, int, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return database.Invitation{}, 0, false
	}

	var req InvitationActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InvitationId == 0 {
		s.writeApiError(w, NewBadRequestError())
		return database.Invitation{}, 0, false
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return database.Invitation{}, 0, false
	}

	inv, err := s.db.GetInvitationById(req.InvitationId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return database.Invitation{}, 0, false
	}

	if inv.ReceiverEmail != user.EmailAddress {
		s.writeApiError(w, NewForbiddenError())
		return database.Invitation{}, 0, false
	}

	if inv.Status != database.InviteStatusPending {
		s.writeApiError(w, NewConflictError())
		return database.Invitation{}, 0, false
	}

	return inv, userId, true
}

func (s *App) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	inv, userId, ok := s.resolvePendingInvitation(w, r)
	if !ok {
		return
	}

	if err := s.db.AcceptInvitation(inv.Id, userId); err != nil {
		s.log.Println("accept invitation:", err)
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *App) rejectInvitation(w http.ResponseWriter, r *http.Request) {
	inv, _, ok := s.resolvePendingInvitation(w, r)
	if !ok {
		return
	}

	if err := s.db.RejectInvitation(inv.Id); err != nil {
		s.log.Println("reject invitation:", err)
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"rejected": true})
}

func (s *App) updateLocation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	if req.Latitude == nil || req.Longitude == nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	user, err := s.db.UpdateUserLocation(userId, *req.Latitude, *req.Longitude, rtserver.Now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	s.writeJson(w, http.StatusOK, userFromRecord(user).Location)
}

func (s *App) getMyLocation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	loc, err := s.db.GetUserLocation(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	s.writeJson(w, http.StatusOK, types.Position{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		UpdatedAt: loc.UpdatedAt,
	})
}

func (s *App) getRoomLocations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	room, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	if room.CreatorId != userId && !s.db.RoomMemberExists(room.Id, userId) {
		s.writeApiError(w, NewForbiddenError())
		return
	}

	dbLocs, err := s.db.ListRoomLocations(room.Id)
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	locs := make([]types.MemberLocation, 0, len(dbLocs))
	for _, loc := range dbLocs {
		locs = append(locs, types.MemberLocation{
			UserId:    loc.UserId,
			Username:  loc.Username,
			RoomId:    loc.RoomId,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			UpdatedAt: loc.UpdatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, locs)
}

func (s *App) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	if req.RoomId == "" || req.Content == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	room, err := s.db.GetRoomByExternalId(req.RoomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	if room.CreatorId != userId && !s.db.RoomMemberExists(room.Id, userId) {
		s.writeApiError(w, NewForbiddenError())
		return
	}

	msg, err := s.db.CreateMessage(database.Message{
		RoomId:    room.Id,
		UserId:    userId,
		Content:   req.Content,
		CreatedAt: rtserver.Now(),
	})
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, types.Message{
		Id:        msg.Id,
		RoomId:    msg.RoomId,
		UserId:    msg.UserId,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	})
}

func (s *App) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	externalId := r.URL.Query().Get("room_id")
	if externalId == "" {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	room, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeApiError(w, NewNotFoundError())
		} else {
			s.writeApiError(w, NewInternalServerError(err))
		}
		return
	}

	if room.CreatorId != userId && !s.db.RoomMemberExists(room.Id, userId) {
		s.writeApiError(w, NewForbiddenError())
		return
	}

	var limit int
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			s.writeApiError(w, NewBadRequestError())
			return
		}
	}

	dbMsgs, err := s.db.GetMessages(room.Id, limit)
	if err != nil {
		s.writeApiError(w, NewInternalServerError(err))
		return
	}

	messages := make([]types.Message, 0, len(dbMsgs))
	for _, msg := range dbMsgs {
		messages = append(messages, types.Message{
			Id:        msg.Id,
			RoomId:    msg.RoomId,
			UserId:    msg.UserId,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		s.writeApiError(w, NewUnauthorizedError())
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	// the setup event carries its own user id; the upgrade endpoint is
	// cookie-authenticated but the realtime channel trusts the payload,
	// matching the login flow that issued the id client-side
	client := rtserver.NewClient(conn, s.rt, s.log)

	s.rt.RegisterClient(client)
	go client.Write()
	go client.Read()
}
