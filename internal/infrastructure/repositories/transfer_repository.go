package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
)

const transferColumns = `
	id, token_id, source_network, destination_network, destination_address,
	sender, stage, direction, step, source_tx_hash, source_block_number,
	destination_tx_hash, error_code, error_message, started_at, updated_at`

// TransferRepository journals bridge transfers in Postgres
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, transfer *entities.TransferState) error {
	query := `INSERT INTO bridge_transfers (` + transferColumns + `) VALUES (
		:id, :token_id, :source_network, :destination_network, :destination_address,
		:sender, :stage, :direction, :step, :source_tx_hash, :source_block_number,
		:destination_tx_hash, :error_code, :error_message, :started_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, transfer); err != nil {
		return fmt.Errorf("insert transfer %s: %w", transfer.ID, err)
	}
	return nil
}

// Update writes the transfer's progress. A transfer whose insert was lost
// is inserted.
func (r *TransferRepository) Update(ctx context.Context, transfer *entities.TransferState) error {
	query := `INSERT INTO bridge_transfers (` + transferColumns + `) VALUES (
		:id, :token_id, :source_network, :destination_network, :destination_address,
		:sender, :stage, :direction, :step, :source_tx_hash, :source_block_number,
		:destination_tx_hash, :error_code, :error_message, :started_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		stage = EXCLUDED.stage,
		step = EXCLUDED.step,
		source_tx_hash = EXCLUDED.source_tx_hash,
		source_block_number = EXCLUDED.source_block_number,
		destination_tx_hash = EXCLUDED.destination_tx_hash,
		error_code = EXCLUDED.error_code,
		error_message = EXCLUDED.error_message,
		updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, transfer); err != nil {
		return fmt.Errorf("update transfer %s: %w", transfer.ID, err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.TransferState, error) {
	var transfer entities.TransferState
	query := `SELECT ` + transferColumns + ` FROM bridge_transfers WHERE id = $1`
	if err := r.db.GetContext(ctx, &transfer, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError(fmt.Sprintf("transfer %s", id))
		}
		return nil, err
	}
	return &transfer, nil
}

// GetBySourceTxHash returns nil without error when no transfer locked with txHash
func (r *TransferRepository) GetBySourceTxHash(ctx context.Context, txHash string) (*entities.TransferState, error) {
	var transfer entities.TransferState
	query := `SELECT ` + transferColumns + ` FROM bridge_transfers WHERE source_tx_hash = $1`
	if err := r.db.GetContext(ctx, &transfer, query, txHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &transfer, nil
}

// ListUnfinished returns transfers that stopped between Idle and a terminal
// stage, oldest first
func (r *TransferRepository) ListUnfinished(ctx context.Context) ([]*entities.TransferState, error) {
	var transfers []*entities.TransferState
	query := `SELECT ` + transferColumns + ` FROM bridge_transfers
		WHERE stage NOT IN ($1, $2, $3)
		ORDER BY started_at ASC`
	err := r.db.SelectContext(ctx, &transfers, query,
		entities.StageIdle,
		entities.StageReleased,
		entities.StageFailed,
	)
	return transfers, err
}
