package database

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	addMemberQuery = "INSERT INTO room_members (room_id, account_id, created_at) " +
		"VALUES ($1, $2, $3) ON CONFLICT (room_id, account_id) DO NOTHING"
	userColumns = "id, username, email, latitude, longitude, location_updated_at, is_online, last_seen"
)

func (db *PgRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT "+userColumns+" FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	)

	return scanUser(row)
}

func (db *PgRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT "+userColumns+", password_hash FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Latitude,
		&u.Longitude,
		&u.LocationUpdatedAt,
		&u.IsOnline,
		&u.LastSeen,
		&u.PasswordHash,
	)

	return u, err
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Latitude,
		&u.Longitude,
		&u.LocationUpdatedAt,
		&u.IsOnline,
		&u.LastSeen,
	)

	return u, err
}

// loadUserRooms fills in the created and joined room sets on a user
// record. The lists may overlap since room creators also hold a
// membership row; callers are expected to dedupe the union.
func (db *PgRepository) loadUserRooms(u *User) error {
	rows, err := db.conn.Query(
		"SELECT id, external_id FROM rooms WHERE creator_id = $1",
		u.Id,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ref RoomRef
		if err := rows.Scan(&ref.Id, &ref.ExternalId); err != nil {
			return err
		}
		u.RoomsCreated = append(u.RoomsCreated, ref)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	joined, err := db.conn.Query(
		"SELECT r.id, r.external_id FROM room_members m "+
			"JOIN rooms r ON r.id = m.room_id WHERE m.account_id = $1",
		u.Id,
	)
	if err != nil {
		return err
	}
	defer joined.Close()

	for joined.Next() {
		var ref RoomRef
		if err := joined.Scan(&ref.Id, &ref.ExternalId); err != nil {
			return err
		}
		u.RoomsJoined = append(u.RoomsJoined, ref)
	}

	return joined.Err()
}

func (db *PgRepository) MarkUserOnline(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"UPDATE accounts SET is_online = TRUE, updated_at = $2 "+
			"WHERE id = $1 RETURNING "+userColumns,
		accountId,
		time.Now().UTC(),
	)

	u, err := scanUser(row)
	if err != nil {
		return u, err
	}

	return u, db.loadUserRooms(&u)
}

func (db *PgRepository) MarkUserOffline(accountId int, lastSeen time.Time) (User, error) {
	row := db.conn.QueryRow(
		"UPDATE accounts SET is_online = FALSE, last_seen = $2, updated_at = $2 "+
			"WHERE id = $1 RETURNING "+userColumns,
		accountId,
		lastSeen,
	)

	u, err := scanUser(row)
	if err != nil {
		return u, err
	}

	return u, db.loadUserRooms(&u)
}

func (db *PgRepository) UpdateUserLocation(accountId int, latitude, longitude float64, updatedAt time.Time) (User, error) {
	row := db.conn.QueryRow(
		"UPDATE accounts SET latitude = $2, longitude = $3, location_updated_at = $4, "+
			"is_online = TRUE, updated_at = $4 WHERE id = $1 RETURNING "+userColumns,
		accountId,
		latitude,
		longitude,
		updatedAt,
	)

	u, err := scanUser(row)
	if err != nil {
		return u, err
	}

	return u, db.loadUserRooms(&u)
}

func (db *PgRepository) UpsertLocation(accountId, roomId int, latitude, longitude float64, updatedAt time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO locations (account_id, room_id, latitude, longitude, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (account_id, room_id) DO UPDATE "+
			"SET latitude = $3, longitude = $4, updated_at = $5",
		accountId,
		roomId,
		latitude,
		longitude,
		updatedAt,
	)

	return err
}

func (db *PgRepository) GetUserLocation(accountId int) (Location, error) {
	row := db.conn.QueryRow(
		"SELECT latitude, longitude, location_updated_at FROM accounts "+
			"WHERE id = $1 AND latitude IS NOT NULL LIMIT 1",
		accountId,
	)

	loc := Location{UserId: accountId}
	err := row.Scan(&loc.Latitude, &loc.Longitude, &loc.UpdatedAt)

	return loc, err
}

func (db *PgRepository) ListRoomLocations(roomId int) ([]Location, error) {
	rows, err := db.conn.Query(
		"SELECT l.account_id, a.username, l.room_id, l.latitude, l.longitude, l.updated_at "+
			"FROM locations l JOIN accounts a ON a.id = l.account_id WHERE l.room_id = $1",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs = make([]Location, 0)
	for rows.Next() {
		var loc Location
		if err = rows.Scan(&loc.UserId, &loc.Username, &loc.RoomId, &loc.Latitude, &loc.Longitude, &loc.UpdatedAt); err != nil {
			break
		}

		locs = append(locs, loc)
	}

	return locs, err
}

func (db *PgRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO rooms (name, external_id, description, creator_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) "+
			"RETURNING id, name, external_id, description, creator_id, created_at, updated_at",
		params.Name,
		params.ExternalId,
		params.Description,
		params.CreatorId,
		time.Now().UTC(),
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.Name,
		&room.ExternalId,
		&room.Description,
		&room.CreatorId,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return Room{}, err
	}

	// the creator is always a member
	_, err = tx.Exec(addMemberQuery, room.Id, params.CreatorId, time.Now().UTC())
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, err
}

func (db *PgRepository) UpdateRoom(params UpdateRoomParams) (Room, error) {
	res := db.conn.QueryRow(
		"UPDATE rooms SET name = $2, description = $3, updated_at = $4 WHERE id = $1 "+
			"RETURNING id, name, external_id, description, creator_id, created_at, updated_at",
		params.RoomId,
		params.Name,
		params.Description,
		time.Now().UTC(),
	)

	var room Room
	err := res.Scan(
		&room.Id,
		&room.Name,
		&room.ExternalId,
		&room.Description,
		&room.CreatorId,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgRepository) DeleteRoom(roomId int) error {
	_, err := db.conn.Exec("DELETE FROM rooms WHERE id = $1", roomId)

	return err
}

func (db *PgRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, name, description, creator_id, created_at, updated_at "+
			"FROM rooms WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.Description,
		&room.CreatorId,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgRepository) GetRoomWithMembers(roomId int) (*Room, error) {
	query := `
		SELECT
				r.id,
				r.external_id,
				r.name,
				r.description,
				r.creator_id,
				r.created_at,
				r.updated_at,
				a.id,
				a.username,
				a.is_online,
				a.last_seen
		FROM rooms r
		LEFT JOIN room_members m ON r.id = m.room_id
		LEFT JOIN accounts a ON m.account_id = a.id
		WHERE r.id = $1;
`

	rows, err := db.conn.Query(query, roomId)
	if err != nil {
		return nil, fmt.Errorf("fetch room with members: %w", err)
	}
	defer rows.Close()

	var room *Room
	for rows.Next() {
		var (
			r        Room
			memberId sql.NullInt64
			username sql.NullString
			isOnline sql.NullBool
			lastSeen sql.NullTime
		)

		err := rows.Scan(
			&r.Id,
			&r.ExternalId,
			&r.Name,
			&r.Description,
			&r.CreatorId,
			&r.CreatedAt,
			&r.UpdatedAt,
			&memberId,
			&username,
			&isOnline,
			&lastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if room == nil {
			r.Members = make([]User, 0)
			room = &r
		}

		if memberId.Valid && username.Valid {
			member := User{
				Id:       int(memberId.Int64),
				Username: username.String,
				IsOnline: isOnline.Bool,
			}
			if lastSeen.Valid {
				member.LastSeen = &lastSeen.Time
			}
			room.Members = append(room.Members, member)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if room == nil {
		return nil, sql.ErrNoRows
	}

	return room, nil
}

func (db *PgRepository) ListRoomsForUser(accountId int) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT DISTINCT r.id, r.external_id, r.name, r.description, r.creator_id "+
			"FROM rooms r LEFT JOIN room_members m ON r.id = m.room_id "+
			"WHERE r.creator_id = $1 OR m.account_id = $1",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err = rows.Scan(&room.Id, &room.ExternalId, &room.Name, &room.Description, &room.CreatorId); err != nil {
			break
		}

		rooms = append(rooms, room)
	}

	return rooms, err
}

func (db *PgRepository) RoomMemberExists(roomId, accountId int) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM room_members WHERE room_id = $1 AND account_id = $2 LIMIT 1",
		roomId,
		accountId,
	)

	var id int
	return res.Scan(&id) == nil
}

func (db *PgRepository) CreateInvitation(params CreateInvitationParams) (Invitation, error) {
	res := db.conn.QueryRow(
		"INSERT INTO invitations (room_id, sender_id, receiver_email, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, room_id, sender_id, receiver_email, status, created_at",
		params.RoomId,
		params.SenderId,
		params.ReceiverEmail,
		InviteStatusPending,
		time.Now().UTC(),
	)

	var inv Invitation
	err := res.Scan(
		&inv.Id,
		&inv.RoomId,
		&inv.SenderId,
		&inv.ReceiverEmail,
		&inv.Status,
		&inv.CreatedAt,
	)

	return inv, err
}

func (db *PgRepository) GetInvitationById(invitationId int) (Invitation, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, sender_id, receiver_email, status, created_at "+
			"FROM invitations WHERE id = $1 LIMIT 1",
		invitationId,
	)

	var inv Invitation
	err := row.Scan(
		&inv.Id,
		&inv.RoomId,
		&inv.SenderId,
		&inv.ReceiverEmail,
		&inv.Status,
		&inv.CreatedAt,
	)

	return inv, err
}

func (db *PgRepository) ListInvitationsForEmail(email string) ([]Invitation, error) {
	return db.listInvitations(
		"SELECT i.id, i.room_id, r.name, i.sender_id, a.username, i.receiver_email, i.status, i.created_at "+
			"FROM invitations i JOIN rooms r ON r.id = i.room_id JOIN accounts a ON a.id = i.sender_id "+
			"WHERE i.receiver_email = $1 AND i.status = $2",
		email,
		InviteStatusPending,
	)
}

func (db *PgRepository) ListPendingSentInvitations(senderId int) ([]Invitation, error) {
	return db.listInvitations(
		"SELECT i.id, i.room_id, r.name, i.sender_id, a.username, i.receiver_email, i.status, i.created_at "+
			"FROM invitations i JOIN rooms r ON r.id = i.room_id JOIN accounts a ON a.id = i.sender_id "+
			"WHERE i.sender_id = $1 AND i.status = $2",
		senderId,
		InviteStatusPending,
	)
}

func (db *PgRepository) listInvitations(query string, args ...any) ([]Invitation, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs = make([]Invitation, 0)
	for rows.Next() {
		var inv Invitation
		if err = rows.Scan(&inv.Id, &inv.RoomId, &inv.RoomName, &inv.SenderId, &inv.SenderName,
			&inv.ReceiverEmail, &inv.Status, &inv.CreatedAt); err != nil {
			break
		}

		invs = append(invs, inv)
	}

	return invs, err
}

func (db *PgRepository) PendingInvitationExists(roomId int, email string) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM invitations WHERE room_id = $1 AND receiver_email = $2 AND status = $3 LIMIT 1",
		roomId,
		email,
		InviteStatusPending,
	)

	var id int
	return res.Scan(&id) == nil
}

// AcceptInvitation flips the invitation to accepted and adds the
// receiver to the room's member set in a single transaction, keeping
// the room-resolution data the realtime core trusts consistent.
func (db *PgRepository) AcceptInvitation(invitationId, accountId int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var roomId int
	err = tx.QueryRow(
		"UPDATE invitations SET status = $2, updated_at = $3 WHERE id = $1 RETURNING room_id",
		invitationId,
		InviteStatusAccepted,
		time.Now().UTC(),
	).Scan(&roomId)
	if err != nil {
		return err
	}

	_, err = tx.Exec(addMemberQuery, roomId, accountId, time.Now().UTC())
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgRepository) RejectInvitation(invitationId int) error {
	_, err := db.conn.Exec(
		"UPDATE invitations SET status = $2, updated_at = $3 WHERE id = $1",
		invitationId,
		InviteStatusRejected,
		time.Now().UTC(),
	)

	return err
}

func (db *PgRepository) CreateMessage(msg Message) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (room_id, user_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, room_id, user_id, content, created_at",
		msg.RoomId,
		msg.UserId,
		msg.Content,
		msg.CreatedAt,
	)

	var saved Message
	err := res.Scan(&saved.Id, &saved.RoomId, &saved.UserId, &saved.Content, &saved.CreatedAt)

	return saved, err
}

func (db *PgRepository) GetMessages(roomId, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, room_id, user_id, content, created_at FROM messages "+
			"WHERE room_id = $1 ORDER BY id DESC LIMIT $2",
		roomId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.RoomId, &msg.UserId, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}
