package registrationrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"impulsame/internal/domain"
	apperror "impulsame/internal/errors"
	"impulsame/internal/pkg/cache"
	"impulsame/internal/pkg/logger"
)

// uniqueViolation é o código SQLSTATE do PostgreSQL para violação de
// restrição de unicidade. É o mecanismo de create-if-absent do serviço:
// o banco decide a corrida, não o código.
const uniqueViolation = "23505"

// userFolderCacheKey é a chave de cache para a busca por folder_name.
const userFolderCacheKey = "user:folder:%s"

// cacheTTL limita a vida do registro em cache; a fase dois invalida a
// entrada ao transicionar o status.
const cacheTTL = 10 * time.Minute

// RegistrationRepository implementa a interface domain.RegistrationStore
// sobre PostgreSQL, com cache-aside (Redis) na busca por folder_name.
type RegistrationRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewRegistrationRepository cria uma nova instância do repositório, injetando o DB e o Cache.
func NewRegistrationRepository(db *sql.DB, cacheClient cache.Client, dbTimeout time.Duration, logger logger.Logger) *RegistrationRepository {
	return &RegistrationRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

const insertSQL = `INSERT INTO users (
        id, email, full_name, birth_date, ci, phone1, phone2, address,
        instagram, facebook, tiktok, ref1_name, ref1_relation,
        ref2_name, ref2_relation, monthly_income, activity_type, position,
        folder_name, status, created_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`

const selectColumns = `id, email, full_name, COALESCE(birth_date, ''), ci, phone1, phone2, address,
        instagram, facebook, tiktok, ref1_name, ref1_relation,
        ref2_name, ref2_relation, monthly_income, activity_type, position,
        folder_name, status, created_at`

// Create insere um novo UserRecord. Uma violação de unicidade (email ou ci
// já ocupados) é traduzida para domain.ErrUniqueViolation, o resultado
// distinguível que o Orquestrador usa para decidir entre duplicata e retry.
func (r *RegistrationRepository) Create(ctx context.Context, record domain.UserRecord) (domain.UserRecord, error) {
	r.logger.Debug("Iniciando Create de registro no repositório.", map[string]interface{}{
		"email": record.Profile.Email,
		"ci":    record.Profile.CI,
	})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	p := record.Profile
	_, err := r.DB.ExecContext(
		ctxTimeout,
		insertSQL,
		record.ID,
		p.Email,
		p.FullName,
		nullableString(p.BirthDate),
		p.CI,
		p.Phone1,
		p.Phone2,
		p.Address,
		p.Instagram,
		p.Facebook,
		p.Tiktok,
		p.Ref1Name,
		p.Ref1Relation,
		p.Ref2Name,
		p.Ref2Relation,
		p.MonthlyIncome,
		string(p.ActivityType),
		p.Position,
		record.FolderName,
		string(record.Status),
		record.CreatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			r.logger.Debug("Violação de unicidade no Create.", map[string]interface{}{
				"email":      p.Email,
				"ci":         p.CI,
				"constraint": pqErr.Constraint,
			})
			return domain.UserRecord{}, fmt.Errorf("create user: %w", domain.ErrUniqueViolation)
		}
		r.logger.Error("Falha ao inserir registro no DB.", err)
		return domain.UserRecord{}, apperror.NewStorageError("Falha ao inserir o registro no banco.", err)
	}

	r.logger.Info("Registro criado com sucesso no repositório.", map[string]interface{}{
		"user_id":     record.ID,
		"folder_name": record.FolderName,
	})
	return record, nil
}

// FindByEmailOrCI busca o registro conflitante quando o Create observa a
// violação de unicidade. Qualquer um dos dois campos pode ter colidido.
func (r *RegistrationRepository) FindByEmailOrCI(ctx context.Context, email, ci string) (domain.UserRecord, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + selectColumns + ` FROM users WHERE email = $1 OR ci = $2 LIMIT 1`
	row := r.DB.QueryRowContext(ctxTimeout, query, email, ci)

	record, err := scanUserRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserRecord{}, apperror.NewNotFoundError(
				fmt.Sprintf("Registro com email '%s' ou ci '%s' não encontrado.", email, ci))
		}
		r.logger.Error("Falha ao buscar registro por email/ci no DB.", err)
		return domain.UserRecord{}, apperror.NewStorageError("Falha ao consultar o banco.", err)
	}

	return record, nil
}

// FindByFolderName busca um registro pela chave de correlação da fase dois,
// utilizando a estratégia Cache-Aside.
func (r *RegistrationRepository) FindByFolderName(ctx context.Context, folderName string) (domain.UserRecord, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	key := fmt.Sprintf(userFolderCacheKey, folderName)
	var record domain.UserRecord

	// 1. Tentar obter do Cache (Redis)
	cachedData, err := r.Cache.Get(ctxTimeout, key)
	if err == nil {
		if json.Unmarshal([]byte(cachedData), &record) == nil {
			r.logger.Debug("Cache HIT para folder_name.", map[string]interface{}{"folder_name": folderName})
			return record, nil
		}
		// Entrada corrompida: descarta e segue para o banco
		_ = r.Cache.Delete(ctxTimeout, key)
	}

	// 2. Cache MISS: buscar no banco
	query := `SELECT ` + selectColumns + ` FROM users WHERE folder_name = $1`
	row := r.DB.QueryRowContext(ctxTimeout, query, folderName)

	record, err = scanUserRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserRecord{}, apperror.NewNotFoundError(
				fmt.Sprintf("Registro com folder_name '%s' não encontrado.", folderName))
		}
		r.logger.Error("Falha ao buscar registro por folder_name no DB.", err)
		return domain.UserRecord{}, apperror.NewStorageError("Falha ao consultar o banco.", err)
	}

	// 3. Popular o cache (falha aqui não é fatal)
	if data, marshalErr := json.Marshal(record); marshalErr == nil {
		if cacheErr := r.Cache.Set(ctxTimeout, key, string(data), cacheTTL); cacheErr != nil {
			r.logger.Warn("Falha ao popular o cache de folder_name.", map[string]interface{}{
				"folder_name": folderName,
			})
		}
	}

	return record, nil
}

// UpdateStatus atualiza o status do registro e invalida a entrada de cache
// correspondente. O Orquestrador é o único chamador.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, userID string, status domain.RegistrationStatus) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `UPDATE users SET status = $1 WHERE id = $2 RETURNING folder_name`
	var folderName string
	err := r.DB.QueryRowContext(ctxTimeout, query, string(status), userID).Scan(&folderName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NewNotFoundError(fmt.Sprintf("Registro '%s' não encontrado para atualização de status.", userID))
		}
		r.logger.Error("Falha ao atualizar status do registro no DB.", err)
		return apperror.NewStorageError("Falha ao atualizar o status do registro.", err)
	}

	// Invalida o cache para que a próxima leitura enxergue o novo status.
	key := fmt.Sprintf(userFolderCacheKey, folderName)
	if cacheErr := r.Cache.Delete(ctxTimeout, key); cacheErr != nil {
		r.logger.Warn("Falha ao invalidar o cache após UpdateStatus.", map[string]interface{}{
			"folder_name": folderName,
		})
	}

	r.logger.Info("Status do registro atualizado.", map[string]interface{}{
		"user_id": userID,
		"status":  string(status),
	})
	return nil
}

// rowScanner abstrai *sql.Row e *sql.Rows para o mapeamento do registro.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRecord mapeia uma linha da tabela users para o domain.UserRecord.
func scanUserRecord(row rowScanner) (domain.UserRecord, error) {
	var record domain.UserRecord
	var p domain.RegistrationProfile
	var activityType, status string

	err := row.Scan(
		&record.ID,
		&p.Email,
		&p.FullName,
		&p.BirthDate,
		&p.CI,
		&p.Phone1,
		&p.Phone2,
		&p.Address,
		&p.Instagram,
		&p.Facebook,
		&p.Tiktok,
		&p.Ref1Name,
		&p.Ref1Relation,
		&p.Ref2Name,
		&p.Ref2Relation,
		&p.MonthlyIncome,
		&activityType,
		&p.Position,
		&record.FolderName,
		&status,
		&record.CreatedAt,
	)
	if err != nil {
		return domain.UserRecord{}, err
	}

	p.ActivityType = domain.ActivityType(activityType)
	record.Profile = p
	record.Status = domain.RegistrationStatus(status)
	return record, nil
}

// nullableString converte string vazia em NULL para colunas opcionais.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
