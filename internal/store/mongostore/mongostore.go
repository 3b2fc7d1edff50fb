// Package mongostore persists users, projects and tasks in MongoDB collections.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/monocle-dev/planboard/internal/models"
	"github.com/monocle-dev/planboard/internal/store"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	projectsCollection = "projects"
	tasksCollection    = "tasks"
)

type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	users    *mongo.Collection
	projects *mongo.Collection
	tasks    *mongo.Collection
	log      logrus.FieldLogger
	now      func() time.Time
}

// Connect dials the server, verifies the connection with a ping and ensures
// the indexes exist.
func Connect(ctx context.Context, uri, database string, timeout time.Duration, log logrus.FieldLogger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)

	log.WithField("database", database).Info("Connected to MongoDB")

	s := &Store{
		client:   client,
		db:       db,
		users:    db.Collection(usersCollection),
		projects: db.Collection(projectsCollection),
		tasks:    db.Collection(tasksCollection),
		log:      log,
		now:      time.Now,
	}

	if err := s.Migrate(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *Store) Users() store.UserStore       { return userStore{s} }
func (s *Store) Projects() store.ProjectStore { return projectStore{s} }
func (s *Store) Tasks() store.TaskStore       { return taskStore{s} }

// indexSpecs lists the indexes per collection. The unique email index backs
// ErrDuplicate on user create and update.
func indexSpecs() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		projectsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{{Key: "members", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		tasksCollection: {
			{Keys: bson.D{{Key: "project", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
		},
	}
}

// Migrate creates the indexes the queries rely on. Creating an existing
// index is a no-op, so Connect runs it on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for name, specs := range indexSpecs() {
		collection := s.db.Collection(name)
		if _, err := collection.Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
		s.log.WithField("collection", name).Debug("Indexes ensured")
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func accessibleFilter(userID string) bson.M {
	oid := objectID(userID)
	return bson.M{"$or": bson.A{
		bson.M{"owner": oid},
		bson.M{"members": oid},
	}}
}

func newestFirst() bson.D {
	return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
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

	if _, err := u.s.users.InsertOne(ctx, toUserDocument(user)); err != nil {
		return translate(err)
	}
	return nil
}

func (u userStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := u.s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}

	user := doc.model()
	return &user, nil
}

func (u userStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return u.findOne(ctx, bson.M{"_id": objectID(id)})
}

func (u userStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.findOne(ctx, bson.M{"email": email})
}

func (u userStore) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return nil, nil
	}

	cursor, err := u.s.users.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.model())
	}

	return users, nil
}

func (u userStore) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = u.s.now()

	result, err := u.s.users.UpdateOne(ctx, bson.M{"_id": objectID(user.ID)}, bson.M{"$set": bson.M{
		"name":          user.Name,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"updated_at":    user.UpdatedAt,
	}})
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}

	return nil
}

// Delete detaches the user from projects and tasks before removing the user
// document, for the same reason DeleteCascade removes tasks first.
func (u userStore) Delete(ctx context.Context, id string) error {
	oid := objectID(id)

	if _, err := u.s.projects.UpdateMany(ctx, bson.M{"members": oid}, bson.M{"$pull": bson.M{"members": oid}}); err != nil {
		return translate(err)
	}

	if _, err := u.s.tasks.UpdateMany(ctx, bson.M{"assigned_to": oid}, bson.M{"$unset": bson.M{"assigned_to": ""}}); err != nil {
		return translate(err)
	}

	result, err := u.s.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translate(err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}

	return nil
}

type projectStore struct{ s *Store }

func (p projectStore) Create(ctx context.Context, project *models.Project) error {
	now := p.s.now()
	project.ID = store.NewID()
	project.CreatedAt = now
	project.UpdatedAt = now

	if _, err := p.s.projects.InsertOne(ctx, toProjectDocument(project)); err != nil {
		return translate(err)
	}
	return nil
}

func (p projectStore) FindByID(ctx context.Context, id string) (*models.Project, error) {
	var doc projectDocument
	if err := p.s.projects.FindOne(ctx, bson.M{"_id": objectID(id)}).Decode(&doc); err != nil {
		return nil, translate(err)
	}

	project := doc.model()
	return &project, nil
}

func (p projectStore) ListAccessible(ctx context.Context, userID string) ([]models.Project, error) {
	cursor, err := p.s.projects.Find(ctx, accessibleFilter(userID), options.Find().SetSort(newestFirst()))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []projectDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	projects := make([]models.Project, 0, len(docs))
	for _, doc := range docs {
		projects = append(projects, doc.model())
	}

	return projects, nil
}

func (p projectStore) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = p.s.now()

	doc := toProjectDocument(project)
	result, err := p.s.projects.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}

	return nil
}

// DeleteCascade removes tasks before the project so an interruption can leave
// an empty project behind but never orphaned tasks. It does not use a
// multi-document transaction; those require a replica set.
func (p projectStore) DeleteCascade(ctx context.Context, id string) (int64, error) {
	oid := objectID(id)

	tasks, err := p.s.tasks.DeleteMany(ctx, bson.M{"project": oid})
	if err != nil {
		return 0, translate(err)
	}

	result, err := p.s.projects.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return tasks.DeletedCount, translate(err)
	}
	if result.DeletedCount == 0 {
		return tasks.DeletedCount, store.ErrNotFound
	}

	return tasks.DeletedCount, nil
}

type taskStore struct{ s *Store }

func (t taskStore) Create(ctx context.Context, task *models.Task) error {
	now := t.s.now()
	task.ID = store.NewID()
	task.CreatedAt = now
	task.UpdatedAt = now

	if _, err := t.s.tasks.InsertOne(ctx, toTaskDocument(task)); err != nil {
		return translate(err)
	}
	return nil
}

func (t taskStore) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var doc taskDocument
	if err := t.s.tasks.FindOne(ctx, bson.M{"_id": objectID(id)}).Decode(&doc); err != nil {
		return nil, translate(err)
	}

	task := doc.model()
	return &task, nil
}

func (t taskStore) ListByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	cursor, err := t.s.tasks.Find(ctx, bson.M{"project": objectID(projectID)}, options.Find().SetSort(newestFirst()))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, doc.model())
	}

	return tasks, nil
}

func (t taskStore) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = t.s.now()

	doc := toTaskDocument(task)
	result, err := t.s.tasks.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (t taskStore) Delete(ctx context.Context, id string) error {
	result, err := t.s.tasks.DeleteOne(ctx, bson.M{"_id": objectID(id)})
	if err != nil {
		return translate(err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}

	return nil
}
