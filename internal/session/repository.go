// Package session implements the C4 Session State Machine and the C7
// Writer/Reader Config Engine: room/RTC/agent lifecycle, signaling, and
// per-agent audio/video policy, all as transactions that commit their
// outbox entries atomically with the state change (spec §4.1, §4.6, §5).
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

// Repository is the pgxpool-backed persistence layer for every entity
// owned by a Room (spec §3 "Ownership").
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin opens a transaction; every session operation is one (spec §4.1
// "each a transaction").
func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseConnectionAcquisitionFailed, err)
	}
	return tx, nil
}

// LockRoom acquires SELECT FOR UPDATE on a room row, serializing all
// writes to it within the caller's transaction (spec §5 "Ordering
// guarantees").
func (r *Repository) LockRoom(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Room, error) {
	const q = `SELECT id, classroom_id, audience, lower(time), upper(time), created_at,
		rtc_sharing_policy, reserve, tags, backend_id, janus_group, host, closed_by, infinite, timed_out
		FROM rooms WHERE id = $1 FOR UPDATE`
	room, err := scanRoom(tx.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.KindRoomNotFound, id.String())
		}
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return room, nil
}

// GetRoom reads a room without locking, for room.read.
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	const q = `SELECT id, classroom_id, audience, lower(time), upper(time), created_at,
		rtc_sharing_policy, reserve, tags, backend_id, janus_group, host, closed_by, infinite, timed_out
		FROM rooms WHERE id = $1`
	room, err := scanRoom(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.KindRoomNotFound, id.String())
		}
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return room, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var room models.Room
	var tags []byte
	if err := row.Scan(&room.ID, &room.ClassroomID, &room.Audience, &room.Time.Lower, &room.Time.Upper,
		&room.CreatedAt, &room.RtcSharingPolicy, &room.Reserve, &tags, &room.BackendID, &room.JanusGroup,
		&room.Host, &room.ClosedBy, &room.Infinite, &room.TimedOut); err != nil {
		return nil, err
	}
	if tags != nil {
		room.Tags = json.RawMessage(tags)
	}
	return &room, nil
}

// InsertRoom creates a new room row.
func (r *Repository) InsertRoom(ctx context.Context, tx pgx.Tx, room *models.Room) error {
	const q = `INSERT INTO rooms (id, classroom_id, audience, time, rtc_sharing_policy, reserve, tags, infinite)
		VALUES (gen_random_uuid(), $1, $2, tstzrange($3, $4, '[)'), $5, $6, $7, $8)
		RETURNING id, created_at`
	return tx.QueryRow(ctx, q, room.ClassroomID, room.Audience, room.Time.Lower, room.Time.Upper,
		room.RtcSharingPolicy, room.Reserve, nullJSON(room.Tags), room.Infinite).Scan(&room.ID, &room.CreatedAt)
}

// UpdateRoom persists the full mutable surface of a locked room.
func (r *Repository) UpdateRoom(ctx context.Context, tx pgx.Tx, room *models.Room) error {
	const q = `UPDATE rooms SET time = tstzrange($2, $3, '[)'), reserve = $4, tags = $5,
		backend_id = $6, janus_group = $7, host = $8, closed_by = $9, infinite = $10, timed_out = $11
		WHERE id = $1`
	_, err := tx.Exec(ctx, q, room.ID, room.Time.Lower, room.Time.Upper, room.Reserve, nullJSON(room.Tags),
		room.BackendID, room.JanusGroup, room.Host, room.ClosedBy, room.Infinite, room.TimedOut)
	return err
}

func nullJSON(b json.RawMessage) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// CountRtcsForPolicy supports the shared/owned RTC-count invariant of
// spec §3: `shared` allows at most one RTC per room; `owned` allows at
// most one per (room, created_by).
func (r *Repository) CountRtcsForPolicy(ctx context.Context, tx pgx.Tx, roomID uuid.UUID, createdBy uuid.UUID, policy models.RtcSharingPolicy) (int, error) {
	var q string
	var args []interface{}
	switch policy {
	case models.PolicyShared:
		q = `SELECT count(*) FROM rtcs WHERE room_id = $1`
		args = []interface{}{roomID}
	case models.PolicyOwned:
		q = `SELECT count(*) FROM rtcs WHERE room_id = $1 AND created_by = $2`
		args = []interface{}{roomID, createdBy}
	default:
		return 0, nil
	}
	var n int
	if err := tx.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return n, nil
}

// InsertRtc creates a new RTC row.
func (r *Repository) InsertRtc(ctx context.Context, tx pgx.Tx, rtc *models.Rtc) error {
	const q = `INSERT INTO rtcs (id, room_id, created_by) VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at`
	return tx.QueryRow(ctx, q, rtc.RoomID, rtc.CreatedBy).Scan(&rtc.ID, &rtc.CreatedAt)
}

// GetRtc reads one RTC by id.
func (r *Repository) GetRtc(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Rtc, error) {
	const q = `SELECT id, room_id, created_by, created_at FROM rtcs WHERE id = $1`
	var rtc models.Rtc
	if err := tx.QueryRow(ctx, q, id).Scan(&rtc.ID, &rtc.RoomID, &rtc.CreatedBy, &rtc.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.KindRtcNotFound, id.String())
		}
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return &rtc, nil
}

// ListRtcs lists RTCs in a room.
func (r *Repository) ListRtcs(ctx context.Context, roomID uuid.UUID) ([]models.Rtc, error) {
	const q = `SELECT id, room_id, created_by, created_at FROM rtcs WHERE room_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.Rtc
	for rows.Next() {
		var rtc models.Rtc
		if err := rows.Scan(&rtc.ID, &rtc.RoomID, &rtc.CreatedBy, &rtc.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, rtc)
	}
	return out, rows.Err()
}

// UpsertAgent creates or refreshes an agent's presence row.
func (r *Repository) UpsertAgent(ctx context.Context, tx pgx.Tx, agent *models.Agent) error {
	const q = `INSERT INTO agents (agent_id, room_id, status, label, entered_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (agent_id, room_id) DO UPDATE SET status = $3, label = $4, entered_at = now()
		RETURNING entered_at`
	return tx.QueryRow(ctx, q, agent.AgentID, agent.RoomID, agent.Status, agent.Label).Scan(&agent.EnteredAt)
}

// SetAgentStatus transitions an agent's status (e.g. in_progress -> ready).
func (r *Repository) SetAgentStatus(ctx context.Context, tx pgx.Tx, roomID, agentID uuid.UUID, status models.AgentStatus) error {
	const q = `UPDATE agents SET status = $3 WHERE room_id = $1 AND agent_id = $2`
	_, err := tx.Exec(ctx, q, roomID, agentID, status)
	return err
}

// GetAgent reads an agent's presence row.
func (r *Repository) GetAgent(ctx context.Context, tx pgx.Tx, roomID, agentID uuid.UUID) (*models.Agent, error) {
	const q = `SELECT agent_id, room_id, status, label, entered_at FROM agents WHERE room_id = $1 AND agent_id = $2`
	var a models.Agent
	if err := tx.QueryRow(ctx, q, roomID, agentID).Scan(&a.AgentID, &a.RoomID, &a.Status, &a.Label, &a.EnteredAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.KindAgentNotEnteredTheRoom, agentID.String())
		}
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return &a, nil
}

// ListAgents returns a page of a room's agents.
func (r *Repository) ListAgents(ctx context.Context, roomID uuid.UUID, offset, limit int) ([]models.Agent, error) {
	const q = `SELECT agent_id, room_id, status, label, entered_at FROM agents
		WHERE room_id = $1 ORDER BY entered_at OFFSET $2 LIMIT $3`
	rows, err := r.pool.Query(ctx, q, roomID, offset, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.AgentID, &a.RoomID, &a.Status, &a.Label, &a.EnteredAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAgent removes an agent's presence row (room.leave).
func (r *Repository) DeleteAgent(ctx context.Context, tx pgx.Tx, roomID, agentID uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM agents WHERE room_id = $1 AND agent_id = $2`, roomID, agentID)
	return err
}

// InsertOrphanedRoom marks a room as orphaned (host departed).
func (r *Repository) InsertOrphanedRoom(ctx context.Context, tx pgx.Tx, roomID uuid.UUID) error {
	const q = `INSERT INTO orphaned_rooms (room_id, added_at) VALUES ($1, now())
		ON CONFLICT (room_id) DO NOTHING`
	_, err := tx.Exec(ctx, q, roomID)
	return err
}

// DeleteOrphanedRoom clears the orphan marker (a new host entered).
func (r *Repository) DeleteOrphanedRoom(ctx context.Context, tx pgx.Tx, roomID uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM orphaned_rooms WHERE room_id = $1`, roomID)
	return err
}

// ListOrphanedRoomsOlderThan supports the vacuum sweep (spec §4.5).
func (r *Repository) ListOrphanedRoomsOlderThan(ctx context.Context, cutoff time.Time) ([]models.OrphanedRoom, error) {
	const q = `SELECT room_id, added_at FROM orphaned_rooms WHERE added_at < $1`
	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.OrphanedRoom
	for rows.Next() {
		var o models.OrphanedRoom
		if err := rows.Scan(&o.RoomID, &o.AddedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListClosedUnswept returns rooms whose time range has ended but whose
// presence/connection state has not yet been cleaned up by a vacuum
// sweep (spec §4.5). `timed_out` doubles as the sweep-done marker.
func (r *Repository) ListClosedUnswept(ctx context.Context, before time.Time) ([]models.Room, error) {
	const q = `SELECT id, classroom_id, audience, lower(time), upper(time), created_at,
		rtc_sharing_policy, reserve, tags, backend_id, janus_group, host, closed_by, infinite, timed_out
		FROM rooms WHERE upper(time) IS NOT NULL AND upper(time) <= $1 AND NOT timed_out`
	rows, err := r.pool.Query(ctx, q, before)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, *room)
	}
	return out, rows.Err()
}

// DeleteAgentsByRoom removes every agent presence row for a room, as
// part of the vacuum sweep's post-close cleanup.
func (r *Repository) DeleteAgentsByRoom(ctx context.Context, tx pgx.Tx, roomID uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM agents WHERE room_id = $1`, roomID)
	return err
}

// DeleteConnectionsByRoom removes every AgentConnection belonging to any
// RTC in a room, as part of the vacuum sweep's post-close cleanup.
func (r *Repository) DeleteConnectionsByRoom(ctx context.Context, tx pgx.Tx, roomID uuid.UUID) error {
	const q = `DELETE FROM agent_connections WHERE rtc_id IN (SELECT id FROM rtcs WHERE room_id = $1)`
	_, err := tx.Exec(ctx, q, roomID)
	return err
}

// MarkRoomSwept flags a room as having completed vacuum cleanup, so
// later sweeps skip it (spec §4.5).
func (r *Repository) MarkRoomSwept(ctx context.Context, tx pgx.Tx, roomID uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE rooms SET timed_out = true WHERE id = $1`, roomID)
	return err
}

// InsertAgentConnection creates an in_progress AgentConnection row.
func (r *Repository) InsertAgentConnection(ctx context.Context, tx pgx.Tx, conn *models.AgentConnection) error {
	const q = `INSERT INTO agent_connections (agent_id, rtc_id, handle_id, backend_id, intent, status, label)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`
	return tx.QueryRow(ctx, q, conn.AgentID, conn.RtcID, conn.HandleID, conn.BackendID, conn.Intent, conn.Status, conn.Label).Scan(&conn.CreatedAt)
}

// SetConnectionStatus transitions an AgentConnection (e.g. to connected).
func (r *Repository) SetConnectionStatus(ctx context.Context, tx pgx.Tx, agentID, rtcID uuid.UUID, status models.ConnectionStatus) error {
	const q = `UPDATE agent_connections SET status = $3 WHERE agent_id = $1 AND rtc_id = $2`
	_, err := tx.Exec(ctx, q, agentID, rtcID, status)
	return err
}

// DeleteAgentConnection removes a connection (leave/hangup/detach/backend loss).
func (r *Repository) DeleteAgentConnection(ctx context.Context, tx pgx.Tx, agentID, rtcID uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM agent_connections WHERE agent_id = $1 AND rtc_id = $2`, agentID, rtcID)
	return err
}

// GetConnection finds one agent's connection to an RTC, if any.
func (r *Repository) GetConnection(ctx context.Context, tx pgx.Tx, agentID, rtcID uuid.UUID) (*models.AgentConnection, error) {
	const q = `SELECT agent_id, rtc_id, handle_id, backend_id, intent, status, label, created_at
		FROM agent_connections WHERE agent_id = $1 AND rtc_id = $2`
	var c models.AgentConnection
	err := tx.QueryRow(ctx, q, agentID, rtcID).Scan(&c.AgentID, &c.RtcID, &c.HandleID, &c.BackendID, &c.Intent, &c.Status, &c.Label, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.KindAgentNotEnteredTheRoom, "no connection for this agent/rtc")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return &c, nil
}

// GetPublisherConnection finds the write-intent connection for an RTC, if any.
func (r *Repository) GetPublisherConnection(ctx context.Context, tx pgx.Tx, rtcID uuid.UUID) (*models.AgentConnection, error) {
	const q = `SELECT agent_id, rtc_id, handle_id, backend_id, intent, status, label, created_at
		FROM agent_connections WHERE rtc_id = $1 AND intent = 'write' LIMIT 1`
	var c models.AgentConnection
	err := tx.QueryRow(ctx, q, rtcID).Scan(&c.AgentID, &c.RtcID, &c.HandleID, &c.BackendID, &c.Intent, &c.Status, &c.Label, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return &c, nil
}

// ListConnectionsByBackend supports backend-loss teardown (spec §4.3).
func (r *Repository) ListConnectionsByBackend(ctx context.Context, backendID uuid.UUID) ([]models.AgentConnection, error) {
	const q = `SELECT agent_id, rtc_id, handle_id, backend_id, intent, status, label, created_at
		FROM agent_connections WHERE backend_id = $1`
	rows, err := r.pool.Query(ctx, q, backendID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.AgentConnection
	for rows.Next() {
		var c models.AgentConnection
		if err := rows.Scan(&c.AgentID, &c.RtcID, &c.HandleID, &c.BackendID, &c.Intent, &c.Status, &c.Label, &c.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadBalancerCandidates returns every known backend with its current
// publisher/subscriber occupancy, for C2's Pick.
func (r *Repository) LoadBalancerCandidates(ctx context.Context) ([]models.JanusBackend, map[uuid.UUID]struct {
	Publishers, OwnedPublishers, Subscribers int
}, error) {
	const bq = `SELECT id, session_id, handle_id, capacity, balancer_capacity, COALESCE(janus_group,''), api_version, janus_url, created_at FROM janus_backends`
	rows, err := r.pool.Query(ctx, bq)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	var backends []models.JanusBackend
	for rows.Next() {
		var b models.JanusBackend
		if err := rows.Scan(&b.ID, &b.SessionID, &b.HandleID, &b.Capacity, &b.BalancerCapacity, &b.Group, &b.APIVersion, &b.JanusURL, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		backends = append(backends, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}

	const lq = `SELECT ac.backend_id, ac.intent, (r.host IS NOT NULL AND r.host = ac.agent_id AND r.rtc_sharing_policy = 'owned')
		FROM agent_connections ac JOIN rtcs t ON t.id = ac.rtc_id JOIN rooms r ON r.id = t.room_id
		WHERE ac.status = 'connected'`
	lrows, err := r.pool.Query(ctx, lq)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer lrows.Close()
	loads := make(map[uuid.UUID]struct {
		Publishers, OwnedPublishers, Subscribers int
	})
	for lrows.Next() {
		var backendID uuid.UUID
		var intent models.ConnectIntent
		var owned bool
		if err := lrows.Scan(&backendID, &intent, &owned); err != nil {
			return nil, nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		l := loads[backendID]
		switch {
		case intent == models.IntentWrite && owned:
			l.OwnedPublishers++
		case intent == models.IntentWrite:
			l.Publishers++
		default:
			l.Subscribers++
		}
		loads[backendID] = l
	}
	return backends, loads, lrows.Err()
}

// GetWriterConfig reads an RTC's writer config, defaulting to sending both
// audio and video with no REMB cap if no row exists yet.
func (r *Repository) GetWriterConfig(ctx context.Context, tx pgx.Tx, rtcID uuid.UUID) (models.RtcWriterConfig, error) {
	const q = `SELECT rtc_id, send_video, send_audio, video_remb, updated_at FROM rtc_writer_configs WHERE rtc_id = $1`
	var c models.RtcWriterConfig
	err := tx.QueryRow(ctx, q, rtcID).Scan(&c.RtcID, &c.SendVideo, &c.SendAudio, &c.VideoRemb, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return models.RtcWriterConfig{RtcID: rtcID, SendVideo: true, SendAudio: true}, nil
	}
	if err != nil {
		return models.RtcWriterConfig{}, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return c, nil
}

// UpsertWriterConfig persists the post-merge writer config.
func (r *Repository) UpsertWriterConfig(ctx context.Context, tx pgx.Tx, c models.RtcWriterConfig) error {
	const q = `INSERT INTO rtc_writer_configs (rtc_id, send_video, send_audio, video_remb, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (rtc_id) DO UPDATE SET send_video = $2, send_audio = $3, video_remb = $4, updated_at = now()`
	_, err := tx.Exec(ctx, q, c.RtcID, c.SendVideo, c.SendAudio, c.VideoRemb)
	return err
}

// InsertWriterConfigSnapshot appends an immutable delta row (spec §4.6
// "snapshots are appended on each change").
func (r *Repository) InsertWriterConfigSnapshot(ctx context.Context, tx pgx.Tx, rtcID uuid.UUID, delta models.WriterConfigDelta) error {
	body, err := json.Marshal(delta)
	if err != nil {
		return apperr.Wrap(apperr.KindMessageBuildingFailed, err)
	}
	const q = `INSERT INTO rtc_writer_config_snapshots (id, rtc_id, delta, created_at) VALUES (gen_random_uuid(), $1, $2, now())`
	_, err = tx.Exec(ctx, q, rtcID, body)
	return err
}

// GetReaderConfig reads one (rtc, reader) receive policy, defaulting to
// receive-everything if unset.
func (r *Repository) GetReaderConfig(ctx context.Context, tx pgx.Tx, rtcID, readerAgentID uuid.UUID) (models.RtcReaderConfig, error) {
	const q = `SELECT rtc_id, reader_agent_id, receive_video, receive_audio, updated_at
		FROM rtc_reader_configs WHERE rtc_id = $1 AND reader_agent_id = $2`
	var c models.RtcReaderConfig
	err := tx.QueryRow(ctx, q, rtcID, readerAgentID).Scan(&c.RtcID, &c.ReaderAgentID, &c.ReceiveVideo, &c.ReceiveAudio, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return models.RtcReaderConfig{RtcID: rtcID, ReaderAgentID: readerAgentID, ReceiveVideo: true, ReceiveAudio: true}, nil
	}
	if err != nil {
		return models.RtcReaderConfig{}, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return c, nil
}

// UpsertReaderConfig persists the post-merge reader config.
func (r *Repository) UpsertReaderConfig(ctx context.Context, tx pgx.Tx, c models.RtcReaderConfig) error {
	const q = `INSERT INTO rtc_reader_configs (rtc_id, reader_agent_id, receive_video, receive_audio, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (rtc_id, reader_agent_id) DO UPDATE SET receive_video = $3, receive_audio = $4, updated_at = now()`
	_, err := tx.Exec(ctx, q, c.RtcID, c.ReaderAgentID, c.ReceiveVideo, c.ReceiveAudio)
	return err
}

// GroupNumber returns an agent's group number within a room, if assigned.
func (r *Repository) GroupNumber(ctx context.Context, tx pgx.Tx, roomID, agentID uuid.UUID) (int, bool, error) {
	const q = `SELECT number FROM group_agents WHERE room_id = $1 AND agent_id = $2`
	var n int
	err := tx.QueryRow(ctx, q, roomID, agentID).Scan(&n)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return n, true, nil
}

// ListGroupPartition returns a room's full group partition.
func (r *Repository) ListGroupPartition(ctx context.Context, roomID uuid.UUID) ([]models.GroupAgent, error) {
	const q = `SELECT room_id, agent_id, number FROM group_agents WHERE room_id = $1 ORDER BY number, agent_id`
	rows, err := r.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.GroupAgent
	for rows.Next() {
		var g models.GroupAgent
		if err := rows.Scan(&g.RoomID, &g.AgentID, &g.Number); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SetGroupPartition overwrites a room's group partition (group.update,
// spec §4.1): replaces every row transactionally.
func (r *Repository) SetGroupPartition(ctx context.Context, tx pgx.Tx, roomID uuid.UUID, groups []models.GroupAgent) error {
	if _, err := tx.Exec(ctx, `DELETE FROM group_agents WHERE room_id = $1`, roomID); err != nil {
		return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	for _, g := range groups {
		if _, err := tx.Exec(ctx, `INSERT INTO group_agents (room_id, agent_id, number) VALUES ($1, $2, $3)`, roomID, g.AgentID, g.Number); err != nil {
			return apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
	}
	return nil
}

// GetBackend reads one JanusBackend row by id, for dialing/addressing.
func (r *Repository) GetBackend(ctx context.Context, id uuid.UUID) (*models.JanusBackend, error) {
	const q = `SELECT id, session_id, handle_id, capacity, balancer_capacity, COALESCE(janus_group,''), api_version, janus_url, created_at
		FROM janus_backends WHERE id = $1`
	var b models.JanusBackend
	err := r.pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.SessionID, &b.HandleID, &b.Capacity, &b.BalancerCapacity, &b.Group, &b.APIVersion, &b.JanusURL, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.KindBackendNotFound, id.String())
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return &b, nil
}

// InsertStream creates a JanusRtcStream row (live, time.upper = nil).
func (r *Repository) InsertStream(ctx context.Context, tx pgx.Tx, s *models.JanusRtcStream) error {
	const q = `INSERT INTO janus_rtc_streams (id, rtc_id, backend_id, handle_id, label, sent_by, time)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, tstzrange(now(), NULL, '[)'))
		RETURNING id, created_at, lower(time)`
	return tx.QueryRow(ctx, q, s.RtcID, s.BackendID, s.HandleID, s.Label, s.SentBy).Scan(&s.ID, &s.CreatedAt, &s.Time.Lower)
}

// GetLiveStream finds the live stream for an RTC, if any (pins subscribers
// to its backend, spec §4.1 rtc.connect).
func (r *Repository) GetLiveStream(ctx context.Context, tx pgx.Tx, rtcID uuid.UUID) (*models.JanusRtcStream, error) {
	const q = `SELECT id, rtc_id, backend_id, handle_id, label, sent_by, lower(time), upper(time), created_at
		FROM janus_rtc_streams WHERE rtc_id = $1 AND upper(time) IS NULL LIMIT 1`
	var s models.JanusRtcStream
	err := tx.QueryRow(ctx, q, rtcID).Scan(&s.ID, &s.RtcID, &s.BackendID, &s.HandleID, &s.Label, &s.SentBy, &s.Time.Lower, &s.Time.Upper, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return &s, nil
}

// CloseStream sets a stream's time.upper, stopping it (spec §4.1 state
// machine: live -> stopped).
func (r *Repository) CloseStream(ctx context.Context, tx pgx.Tx, streamID uuid.UUID) error {
	const q = `UPDATE janus_rtc_streams SET time = tstzrange(lower(time), now(), '[)') WHERE id = $1`
	_, err := tx.Exec(ctx, q, streamID)
	return err
}

// GetLatestStreamForRtc returns an RTC's most recent stream (live or
// already stopped), identifying which backend owns its recording for the
// vacuum sweep's upload request (spec §4.5).
func (r *Repository) GetLatestStreamForRtc(ctx context.Context, rtcID uuid.UUID) (*models.JanusRtcStream, error) {
	const q = `SELECT id, rtc_id, backend_id, handle_id, label, sent_by, lower(time), upper(time), created_at
		FROM janus_rtc_streams WHERE rtc_id = $1 ORDER BY created_at DESC LIMIT 1`
	var s models.JanusRtcStream
	err := r.pool.QueryRow(ctx, q, rtcID).Scan(&s.ID, &s.RtcID, &s.BackendID, &s.HandleID, &s.Label, &s.SentBy, &s.Time.Lower, &s.Time.Upper, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	return &s, nil
}

// ListWriterConfigSnapshots returns an RTC's writer config delta history
// in application order, for transcoder mute-history replay (spec §4.6).
func (r *Repository) ListWriterConfigSnapshots(ctx context.Context, rtcID uuid.UUID) ([]models.RtcWriterConfigSnapshot, error) {
	const q = `SELECT id, rtc_id, delta, created_at FROM rtc_writer_config_snapshots WHERE rtc_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, rtcID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.RtcWriterConfigSnapshot
	for rows.Next() {
		var s models.RtcWriterConfigSnapshot
		var delta []byte
		if err := rows.Scan(&s.ID, &s.RtcID, &delta, &s.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		if len(delta) > 0 {
			if err := json.Unmarshal(delta, &s.Delta); err != nil {
				return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StreamFilter narrows rtc_stream.list (spec §6) to a room's streams.
type StreamFilter struct {
	RtcID  *uuid.UUID
	Since  *time.Time
	Offset int
	Limit  int
}

// ListStreamsByRoom lists a room's streams across its RTCs, optionally
// narrowed to one RTC and/or a minimum creation time.
func (r *Repository) ListStreamsByRoom(ctx context.Context, roomID uuid.UUID, f StreamFilter) ([]models.JanusRtcStream, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT s.id, s.rtc_id, s.backend_id, s.handle_id, s.label, s.sent_by, lower(s.time), upper(s.time), s.created_at
		FROM janus_rtc_streams s JOIN rtcs t ON t.id = s.rtc_id
		WHERE t.room_id = $1`
	args := []interface{}{roomID}
	if f.RtcID != nil {
		args = append(args, *f.RtcID)
		q += fmt.Sprintf(" AND s.rtc_id = $%d", len(args))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		q += fmt.Sprintf(" AND s.created_at >= $%d", len(args))
	}
	args = append(args, limit, f.Offset)
	q += fmt.Sprintf(" ORDER BY s.created_at OFFSET $%d LIMIT $%d", len(args), len(args)-1)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.JanusRtcStream
	for rows.Next() {
		var s models.JanusRtcStream
		if err := rows.Scan(&s.ID, &s.RtcID, &s.BackendID, &s.HandleID, &s.Label, &s.SentBy, &s.Time.Lower, &s.Time.Upper, &s.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListLiveStreamsByBackend supports backend-loss teardown.
func (r *Repository) ListLiveStreamsByBackend(ctx context.Context, backendID uuid.UUID) ([]models.JanusRtcStream, error) {
	const q = `SELECT id, rtc_id, backend_id, handle_id, label, sent_by, lower(time), upper(time), created_at
		FROM janus_rtc_streams WHERE backend_id = $1 AND upper(time) IS NULL`
	rows, err := r.pool.Query(ctx, q, backendID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
	}
	defer rows.Close()
	var out []models.JanusRtcStream
	for rows.Next() {
		var s models.JanusRtcStream
		if err := rows.Scan(&s.ID, &s.RtcID, &s.BackendID, &s.HandleID, &s.Label, &s.SentBy, &s.Time.Lower, &s.Time.Upper, &s.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseQueryFailed, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
