package repository

import (
	"context"
	"time"

	"github.com/spec-kit/parts-support/internal/domain"
)

type replyRepository struct {
	db querier
}

func (r *replyRepository) Create(ctx context.Context, reply *domain.Reply) error {
	const query = `
        INSERT INTO ticket_replies (id, ticket_id, sender_id, sender_role, message, is_system, is_read, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		reply.ID,
		reply.TicketID,
		reply.SenderID,
		string(reply.SenderRole),
		reply.Message,
		reply.IsSystem,
		reply.IsRead,
		reply.CreatedAt,
	)
	return err
}

func (r *replyRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Reply, error) {
	const query = `
        SELECT id, ticket_id, sender_id, sender_role, message, is_system, is_read, created_at
        FROM ticket_replies WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Reply
	for rows.Next() {
		var (
			reply      domain.Reply
			senderRole string
		)
		if err := rows.Scan(
			&reply.ID,
			&reply.TicketID,
			&reply.SenderID,
			&senderRole,
			&reply.Message,
			&reply.IsSystem,
			&reply.IsRead,
			&reply.CreatedAt,
		); err != nil {
			return nil, err
		}
		reply.SenderRole = domain.Role(senderRole)
		result = append(result, reply)
	}
	return result, rows.Err()
}

func (r *replyRepository) LastCreatedAt(ctx context.Context, ticketID string) (*time.Time, error) {
	const query = `SELECT MAX(created_at) FROM ticket_replies WHERE ticket_id=$1`
	var last *time.Time
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(&last); err != nil {
		return nil, err
	}
	return last, nil
}

func (r *replyRepository) MarkRead(ctx context.Context, ticketID string, senderRoles []domain.Role) (int64, error) {
	if len(senderRoles) == 0 {
		return 0, nil
	}
	roles := make([]string, len(senderRoles))
	for i, role := range senderRoles {
		roles[i] = string(role)
	}
	const query = `
        UPDATE ticket_replies SET is_read = TRUE
        WHERE ticket_id=$1 AND sender_role = ANY($2) AND is_read = FALSE`
	cmd, err := r.db.Exec(ctx, query, ticketID, roles)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
