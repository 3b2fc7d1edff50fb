// Package sqlstore persists users, projects and tasks through gorm on
// PostgreSQL or MySQL. Project members live in a join table.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects with the given dialect ("postgres" or "mysql").
func Open(dialect, dsn string, log logrus.FieldLogger) (*Store, error) {
	var dialector gorm.Dialector

	switch dialect {
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "mysql":
		normalized, err := MySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		dialector = mysql.Open(normalized)
	default:
		return nil, fmt.Errorf("unsupported SQL dialect: %s", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// MySQLDSN accepts either a mysql:// URL or a native driver DSN and returns a
// native DSN with time parsing enabled.
func MySQLDSN(raw string) (string, error) {
	var cfg *mysqldrv.Config

	if strings.HasPrefix(raw, "mysql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid MySQL URL: %w", err)
		}

		cfg = mysqldrv.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			cfg.User = u.User.Username()
			cfg.Passwd, _ = u.User.Password()
		}
		for key, values := range u.Query() {
			if len(values) > 0 {
				if cfg.Params == nil {
					cfg.Params = map[string]string{}
				}
				cfg.Params[key] = values[0]
			}
		}
	} else {
		parsed, err := mysqldrv.ParseDSN(raw)
		if err != nil {
			return "", fmt.Errorf("invalid MySQL DSN: %w", err)
		}
		cfg = parsed
	}

	cfg.ParseTime = true
	cfg.Loc = time.UTC

	return cfg.FormatDSN(), nil
}

func (s *Store) Users() store.UserStore       { return userStore{s} }
func (s *Store) Projects() store.ProjectStore { return projectStore{s} }
func (s *Store) Tasks() store.TaskStore       { return taskStore{s} }

func (s *Store) Migrate(ctx context.Context) error {
	tables := []interface{}{
		&userRow{},
		&projectRow{},
		&projectMemberRow{},
		&taskRow{},
	}

	migrator := s.db.WithContext(ctx).Migrator()

	for _, table := range tables {
		if !migrator.HasTable(table) {
			if err := s.db.WithContext(ctx).AutoMigrate(table); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	}
	return err
}

type userStore struct{ s *Store }

func (u userStore) Create(ctx context.Context, user *models.User) error {
	now := u.s.now()
	user.ID = store.NewID()
	user.CreatedAt = now
	user.UpdatedAt = now

	row := toUserRow(user)
	return translate(u.s.db.WithContext(ctx).Create(&row).Error)
}

func (u userStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	if err := u.s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err)
	}

	user := row.model()
	return &user, nil
}

func (u userStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	if err := u.s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return nil, translate(err)
	}

	user := row.model()
	return &user, nil
}

func (u userStore) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []userRow
	if err := u.s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.model())
	}

	return users, nil
}

func (u userStore) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = u.s.now()

	result := u.s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", user.ID).Updates(map[string]any{
		"name":          user.Name,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"updated_at":    user.UpdatedAt,
	})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}

	return nil
}

// Delete drops memberships, clears assignments and removes the user in one transaction.
func (u userStore) Delete(ctx context.Context, id string) error {
	return u.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").Where("id = ?", id).First(&userRow{}).Error; err != nil {
			return translate(err)
		}

		if err := tx.Where("user_id = ?", id).Delete(&projectMemberRow{}).Error; err != nil {
			return err
		}

		if err := tx.Model(&taskRow{}).Where("assigned_to = ?", id).Update("assigned_to", nil).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&userRow{}).Error
	})
}

type projectStore struct{ s *Store }

func (p projectStore) Create(ctx context.Context, project *models.Project) error {
	now := p.s.now()
	project.ID = store.NewID()
	project.CreatedAt = now
	project.UpdatedAt = now

	row := toProjectRow(project)
	return translate(p.s.db.WithContext(ctx).Create(&row).Error)
}

func (p projectStore) FindByID(ctx context.Context, id string) (*models.Project, error) {
	var row projectRow
	if err := p.s.db.WithContext(ctx).Preload("Members").Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err)
	}

	project := row.model()
	return &project, nil
}

func (p projectStore) ListAccessible(ctx context.Context, userID string) ([]models.Project, error) {
	db := p.s.db.WithContext(ctx)
	memberOf := db.Model(&projectMemberRow{}).Select("project_id").Where("user_id = ?", userID)

	var rows []projectRow
	err := db.Preload("Members").
		Where("owner_id = ?", userID).
		Or("id IN (?)", memberOf).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	projects := make([]models.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.model())
	}

	return projects, nil
}

func (p projectStore) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = p.s.now()
	row := toProjectRow(project)

	return p.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").Where("id = ?", row.ID).First(&projectRow{}).Error; err != nil {
			return translate(err)
		}

		if err := tx.Omit(clause.Associations).Save(&row).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", row.ID).Delete(&projectMemberRow{}).Error; err != nil {
			return err
		}

		if len(row.Members) > 0 {
			if err := tx.Create(&row.Members).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// DeleteCascade removes tasks, memberships and the project in one transaction.
func (p projectStore) DeleteCascade(ctx context.Context, id string) (int64, error) {
	var deleted int64

	err := p.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").Where("id = ?", id).First(&projectRow{}).Error; err != nil {
			return translate(err)
		}

		result := tx.Where("project_id = ?", id).Delete(&taskRow{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected

		if err := tx.Where("project_id = ?", id).Delete(&projectMemberRow{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&projectRow{}).Error
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

type taskStore struct{ s *Store }

func (t taskStore) Create(ctx context.Context, task *models.Task) error {
	now := t.s.now()
	task.ID = store.NewID()
	task.CreatedAt = now
	task.UpdatedAt = now

	row := toTaskRow(task)
	return translate(t.s.db.WithContext(ctx).Create(&row).Error)
}

func (t taskStore) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var row taskRow
	if err := t.s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err)
	}

	task := row.model()
	return &task, nil
}

func (t taskStore) ListByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	var rows []taskRow
	err := t.s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.model())
	}

	return tasks, nil
}

func (t taskStore) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = t.s.now()
	row := toTaskRow(task)

	return t.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").Where("id = ?", row.ID).First(&taskRow{}).Error; err != nil {
			return translate(err)
		}
		return tx.Save(&row).Error
	})
}

func (t taskStore) Delete(ctx context.Context, id string) error {
	result := t.s.db.WithContext(ctx).Where("id = ?", id).Delete(&taskRow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}

	return nil
}
