package dbclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"tablestore/internal/domain"
)

// Collection names for metadata. Row collections use the physical table name.
const (
	collDocuments = "documents"
	collRegistry  = "database_registry"
	collTrash     = "trash_items"
	collSnapshots = "snapshots"
)

// mongoStore implements domain.BackingStore on MongoDB. Each database gets
// its own collection; cells live under c_* keys as JSON text so values round
// trip exactly as in the SQL stores.
type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

func openMongo(ctx context.Context, opts Options, password string, log *zap.Logger) (domain.BackingStore, error) {
	uri := buildMongoURI(opts, password)
	dbName := opts.Database
	if dbName == "" {
		dbName = dbNameFromURI(uri)
	}

	log.Info("connecting to mongo",
		zap.String("uri", maskPassword(uri, password)),
		zap.String("database", dbName))

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &mongoStore{client: client, db: client.Database(dbName), log: log}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	log.Info("backing store ready")
	return s, nil
}

// buildMongoURI accepts a full mongodb:// or mongodb+srv:// string in DSN or
// Host, substituting the password placeholder Atlas strings carry. Otherwise
// it assembles one from host and port.
func buildMongoURI(opts Options, password string) string {
	raw := opts.DSN
	if raw == "" && (strings.HasPrefix(opts.Host, "mongodb://") || strings.HasPrefix(opts.Host, "mongodb+srv://")) {
		raw = opts.Host
	}
	if raw != "" {
		if password != "" {
			raw = strings.ReplaceAll(raw, "<password>", password)
			raw = strings.ReplaceAll(raw, "<db_password>", password)
		}
		return raw
	}

	port := opts.Port
	if port == 0 {
		port = 27017
	}
	host := opts.Host
	if host == "" {
		host = "localhost"
	}
	var uri string
	if opts.Username != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", opts.Username, password, host, port)
	} else {
		uri = fmt.Sprintf("mongodb://%s:%d", host, port)
	}
	if len(opts.Extra) > 0 {
		keys := make([]string, 0, len(opts.Extra))
		for k := range opts.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		params := make([]string, 0, len(keys))
		for _, k := range keys {
			params = append(params, k+"="+opts.Extra[k])
		}
		uri += "/?" + strings.Join(params, "&")
	}
	return uri
}

// dbNameFromURI extracts the path segment of user:pass@host/DB?params,
// defaulting to "tablestore".
func dbNameFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	if slash := strings.Index(rest, "/"); slash != -1 {
		path := rest[slash+1:]
		if q := strings.Index(path, "?"); q != -1 {
			path = path[:q]
		}
		if path != "" {
			return path
		}
	}
	return "tablestore"
}

func maskPassword(uri, password string) string {
	if password == "" {
		return uri
	}
	return strings.ReplaceAll(uri, password, "***")
}

func (s *mongoStore) ensureIndexes(ctx context.Context) error {
	idx := []struct {
		coll string
		keys bson.D
	}{
		{collRegistry, bson.D{{Key: "owner_document_id", Value: 1}}},
		{collTrash, bson.D{{Key: "owner_user_id", Value: 1}}},
		{collTrash, bson.D{{Key: "deleted_at", Value: 1}}},
		{collSnapshots, bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}}},
		{collSnapshots, bson.D{{Key: "physical_location", Value: 1}}},
	}
	for _, i := range idx {
		if _, err := s.db.Collection(i.coll).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: i.keys}); err != nil {
			return fmt.Errorf("%s: %w", i.coll, err)
		}
	}
	return nil
}

func (s *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ── Registry & documents ───────────────────────────────────

type registryDoc struct {
	ID                string     `bson:"_id"`
	OwnerDocumentID   string     `bson:"owner_document_id,omitempty"`
	PhysicalTableName string     `bson:"physical_table_name"`
	Name              string     `bson:"name"`
	Kind              string     `bson:"kind"`
	CreatedBy         string     `bson:"created_by"`
	ConfigJSON        string     `bson:"config_json"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at"`
	DeletedAt         *time.Time `bson:"deleted_at"`
}

func toRegistryDoc(d *domain.Database) (*registryDoc, error) {
	cfg, err := json.Marshal(d.Config())
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return &registryDoc{
		ID:                d.ID,
		OwnerDocumentID:   d.OwnerDocumentID,
		PhysicalTableName: d.PhysicalTableName,
		Name:              d.Name,
		Kind:              string(d.Kind),
		CreatedBy:         d.CreatedBy,
		ConfigJSON:        string(cfg),
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
		DeletedAt:         d.DeletedAt,
	}, nil
}

func (r *registryDoc) database() (*domain.Database, error) {
	d := &domain.Database{
		ID:                r.ID,
		OwnerDocumentID:   r.OwnerDocumentID,
		PhysicalTableName: r.PhysicalTableName,
		Name:              r.Name,
		Kind:              domain.DatabaseKind(r.Kind),
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		DeletedAt:         r.DeletedAt,
	}
	var cfg domain.DatabaseConfig
	if err := json.Unmarshal([]byte(r.ConfigJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode config of database %s: %w", r.ID, err)
	}
	d.ApplyConfig(cfg)
	return d, nil
}

func (s *mongoStore) CreateDatabase(ctx context.Context, d *domain.Database) error {
	doc, err := toRegistryDoc(d)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collRegistry).InsertOne(ctx, doc)
	return err
}

func (s *mongoStore) GetDatabase(ctx context.Context, id string) (*domain.Database, error) {
	var doc registryDoc
	err := s.db.Collection(collRegistry).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("database not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return doc.database()
}

func (s *mongoStore) ListDatabases(ctx context.Context, f domain.DatabaseFilter) ([]domain.Database, error) {
	filter := bson.M{}
	if !f.IncludeDeleted {
		filter["deleted_at"] = nil
	}
	if f.DocumentID != "" {
		filter["owner_document_id"] = f.DocumentID
	}
	if f.Kind != "" {
		filter["kind"] = string(f.Kind)
	}
	cur, err := s.db.Collection(collRegistry).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []registryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.Database, 0, len(docs))
	for i := range docs {
		d, err := docs[i].database()
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, nil
}

func (s *mongoStore) UpdateDatabase(ctx context.Context, d *domain.Database) error {
	d.UpdatedAt = time.Now().UTC()
	doc, err := toRegistryDoc(d)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(collRegistry).UpdateOne(ctx, bson.M{"_id": d.ID}, bson.M{"$set": bson.M{
		"name": doc.Name, "config_json": doc.ConfigJSON, "updated_at": doc.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.NotFound("database not found: %s", d.ID)
	}
	return nil
}

func (s *mongoStore) SetDatabaseDeleted(ctx context.Context, id string, at *time.Time) error {
	res, err := s.db.Collection(collRegistry).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"deleted_at": utcPtr(at), "updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.NotFound("database not found: %s", id)
	}
	return nil
}

func (s *mongoStore) DeleteDatabaseRecord(ctx context.Context, id string) error {
	_, err := s.db.Collection(collRegistry).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

type documentDoc struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	OwnerUserID string    `bson:"owner_user_id"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (s *mongoStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.Collection(collDocuments).InsertOne(ctx, documentDoc{
		ID: doc.ID, Title: doc.Title, OwnerUserID: doc.OwnerUserID, CreatedAt: doc.CreatedAt.UTC(),
	})
	return err
}

func (s *mongoStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc documentDoc
	err := s.db.Collection(collDocuments).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("document not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &domain.Document{ID: doc.ID, Title: doc.Title, OwnerUserID: doc.OwnerUserID, CreatedAt: doc.CreatedAt}, nil
}

// ── Physical collections & rows ────────────────────────────

// appendAttempts bounds AppendRows retries after an order collision.
const appendAttempts = 5

func (s *mongoStore) rows(databaseID string) *mongo.Collection {
	return s.db.Collection(domain.PhysicalTableName(databaseID))
}

func (s *mongoStore) ProvisionTable(ctx context.Context, databaseID string, _ []string) error {
	name := domain.PhysicalTableName(databaseID)
	if err := s.db.CreateCollection(ctx, name); err != nil && !isNamespaceExists(err) {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	_, err := s.rows(databaseID).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "row_order", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// AddSlot is a no-op: documents take new keys without a schema change.
func (s *mongoStore) AddSlot(context.Context, string, string) error { return nil }

func (s *mongoStore) DropTable(ctx context.Context, databaseID string) error {
	return s.rows(databaseID).Drop(ctx)
}

// InsertRows inserts the batch in order. Standalone servers have no
// multi-document transactions, so a partial failure is undone by deleting
// the documents that landed before the failing one.
func (s *mongoStore) InsertRows(ctx context.Context, databaseID string, rows []*domain.Row) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]any, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		doc, err := rowToBSON(r)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		ids = append(ids, r.ID)
	}
	coll := s.rows(databaseID)
	if _, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		if landed := insertedPrefix(err, ids); len(landed) > 0 {
			if _, cerr := coll.DeleteMany(context.WithoutCancel(ctx), bson.M{"_id": bson.M{"$in": landed}}); cerr != nil {
				s.log.Error("undo partial insert failed", zap.String("database", databaseID), zap.Error(cerr))
			}
		}
		return fmt.Errorf("insert rows: %w", err)
	}
	return nil
}

// insertedPrefix returns the ids an ordered InsertMany wrote before it
// failed: a write error at index i means ids[:i] landed. Without write
// errors the outcome is unknown; the batch ids are freshly minted, so
// deleting all of them cannot remove an existing row.
func insertedPrefix(err error, ids []string) []string {
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
		first := len(ids)
		for _, we := range bwe.WriteErrors {
			if we.Index < first {
				first = we.Index
			}
		}
		return ids[:first]
	}
	return ids
}

// AppendRows assigns orders after the current maximum and inserts. The
// unique row_order index turns a race with another append into a
// duplicate key error, which is retried with fresh orders.
func (s *mongoStore) AppendRows(ctx context.Context, databaseID string, rows []*domain.Row) error {
	if len(rows) == 0 {
		return nil
	}
	var err error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		var max int64
		if max, err = s.MaxOrder(ctx, databaseID); err != nil {
			return err
		}
		for i, r := range rows {
			r.Order = max + int64(i) + 1
		}
		if err = s.InsertRows(ctx, databaseID, rows); err == nil || !mongo.IsDuplicateKeyError(err) {
			return err
		}
	}
	return domain.Conflict("could not append rows to %s: %v", databaseID, err)
}

func (s *mongoStore) GetRow(ctx context.Context, databaseID, rowID string) (*domain.Row, error) {
	var doc bson.M
	err := s.rows(databaseID).FindOne(ctx, bson.M{"_id": rowID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("row not found: %s", rowID)
	}
	if err != nil {
		return nil, err
	}
	return rowFromBSON(databaseID, doc)
}

var mongoSortFields = map[domain.RowSortField]string{
	domain.SortByOrder:     "row_order",
	domain.SortByCreatedAt: "created_at",
	domain.SortByUpdatedAt: "updated_at",
}

func (s *mongoStore) ListRows(ctx context.Context, databaseID string, q domain.RowQuery) ([]domain.Row, int, error) {
	coll := s.rows(databaseID)
	live := bson.M{"deleted_at": nil}

	total, err := coll.CountDocuments(ctx, live)
	if err != nil {
		return nil, 0, err
	}

	field, ok := mongoSortFields[q.SortBy]
	if !ok {
		field = "row_order"
	}
	dir := 1
	if q.Descending {
		dir = -1
	}
	cur, err := coll.Find(ctx, live, options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit)))
	if err != nil {
		return nil, 0, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	result := make([]domain.Row, 0, len(docs))
	for _, doc := range docs {
		r, err := rowFromBSON(databaseID, doc)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *r)
	}
	return result, int(total), nil
}

func (s *mongoStore) MaxOrder(ctx context.Context, databaseID string) (int64, error) {
	var doc bson.M
	err := s.rows(databaseID).FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "row_order", Value: -1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return toInt64(doc["row_order"]), nil
}

func (s *mongoStore) UpdateRow(ctx context.Context, databaseID string, r *domain.Row, expectedVersion int64) error {
	at := r.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	set := bson.M{"updated_at": at.UTC()}
	for id, v := range r.Cells {
		enc, err := encodeCell(id, v)
		if err != nil {
			return err
		}
		set[domain.SlotName(id)] = enc
	}
	filter := bson.M{"_id": r.ID}
	if expectedVersion > 0 {
		filter["version"] = expectedVersion
	}

	coll := s.rows(databaseID)
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": set, "$inc": bson.M{"version": int64(1)}})
	if err != nil {
		return fmt.Errorf("update row %s: %w", r.ID, err)
	}
	if res.MatchedCount == 0 {
		current, err := s.GetRow(ctx, databaseID, r.ID)
		if err != nil {
			return err
		}
		return domain.Conflict("row %s is at version %d, expected %d", r.ID, current.Version, expectedVersion)
	}
	updated, err := s.GetRow(ctx, databaseID, r.ID)
	if err != nil {
		return err
	}
	*r = *updated
	return nil
}

func (s *mongoStore) SetRowDeleted(ctx context.Context, databaseID, rowID string, at *time.Time) error {
	res, err := s.rows(databaseID).UpdateOne(ctx, bson.M{"_id": rowID},
		bson.M{"$set": bson.M{"deleted_at": utcPtr(at)}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.NotFound("row not found: %s", rowID)
	}
	return nil
}

func (s *mongoStore) PurgeRow(ctx context.Context, databaseID, rowID string) error {
	_, err := s.rows(databaseID).DeleteOne(ctx, bson.M{"_id": rowID})
	return err
}

// rowToBSON lays a row out with the same bookkeeping names the SQL tables use.
func rowToBSON(r *domain.Row) (bson.M, error) {
	doc := bson.M{
		"_id":        r.ID,
		"row_order":  r.Order,
		"version":    r.Version,
		"created_at": r.CreatedAt.UTC(),
		"updated_at": r.UpdatedAt.UTC(),
		"deleted_at": nil,
	}
	if r.DeletedAt != nil {
		doc["deleted_at"] = r.DeletedAt.UTC()
	}
	for id, v := range r.Cells {
		enc, err := encodeCell(id, v)
		if err != nil {
			return nil, err
		}
		doc[domain.SlotName(id)] = enc
	}
	return doc, nil
}

func rowFromBSON(databaseID string, doc bson.M) (*domain.Row, error) {
	id, _ := doc["_id"].(string)
	r := &domain.Row{
		ID:         id,
		DatabaseID: databaseID,
		Order:      toInt64(doc["row_order"]),
		Version:    toInt64(doc["version"]),
		Cells:      map[string]any{},
		CreatedAt:  toTime(doc["created_at"]),
		UpdatedAt:  toTime(doc["updated_at"]),
	}
	if v, ok := doc["deleted_at"]; ok && v != nil {
		t := toTime(v)
		r.DeletedAt = &t
	}
	for key, raw := range doc {
		if !domain.IsSlot(key) || raw == nil {
			continue
		}
		colID, err := domain.ColumnIDFromSlot(key)
		if err != nil {
			return nil, err
		}
		text, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("cell %s of row %s is %T, expected JSON text", colID, id, raw)
		}
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, fmt.Errorf("decode cell %s of row %s: %w", colID, id, err)
		}
		r.Cells[colID] = v
	}
	return r, nil
}

func encodeCell(id string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, domain.Validation("cell %q is not JSON-encodable: %v", id, err)
	}
	return string(b), nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	}
	return time.Time{}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == 48
}

// ── Trash ──────────────────────────────────────────────────

type trashDoc struct {
	ID               string            `bson:"_id"`
	ItemType         string            `bson:"item_type"`
	ItemID           string            `bson:"item_id"`
	PhysicalLocation string            `bson:"physical_location"`
	DisplayName      string            `bson:"display_name"`
	ParentInfo       domain.ParentInfo `bson:"parent_info"`
	OwnerUserID      string            `bson:"owner_user_id"`
	DeletedAt        time.Time         `bson:"deleted_at"`
}

func (t *trashDoc) item() domain.TrashItem {
	return domain.TrashItem{
		ID:               t.ID,
		ItemType:         domain.TrashItemType(t.ItemType),
		ItemID:           t.ItemID,
		PhysicalLocation: t.PhysicalLocation,
		DisplayName:      t.DisplayName,
		ParentInfo:       t.ParentInfo,
		OwnerUserID:      t.OwnerUserID,
		DeletedAt:        t.DeletedAt,
	}
}

func (s *mongoStore) AddTrashItem(ctx context.Context, item *domain.TrashItem) error {
	_, err := s.db.Collection(collTrash).InsertOne(ctx, trashDoc{
		ID:               item.ID,
		ItemType:         string(item.ItemType),
		ItemID:           item.ItemID,
		PhysicalLocation: item.PhysicalLocation,
		DisplayName:      item.DisplayName,
		ParentInfo:       item.ParentInfo,
		OwnerUserID:      item.OwnerUserID,
		DeletedAt:        item.DeletedAt.UTC(),
	})
	return err
}

func (s *mongoStore) GetTrashItem(ctx context.Context, id string) (*domain.TrashItem, error) {
	var doc trashDoc
	err := s.db.Collection(collTrash).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("trash item not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	item := doc.item()
	return &item, nil
}

func (s *mongoStore) ListTrash(ctx context.Context, ownerUserID string) ([]domain.TrashItem, error) {
	return s.findTrash(ctx, bson.M{"owner_user_id": ownerUserID},
		bson.D{{Key: "deleted_at", Value: -1}})
}

func (s *mongoStore) ListExpiredTrash(ctx context.Context, before time.Time) ([]domain.TrashItem, error) {
	items, err := s.findTrash(ctx, bson.M{"deleted_at": bson.M{"$lt": before.UTC()}},
		bson.D{{Key: "deleted_at", Value: 1}})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ItemType == domain.TrashDatabase && items[j].ItemType != domain.TrashDatabase
	})
	return items, nil
}

func (s *mongoStore) findTrash(ctx context.Context, filter bson.M, order bson.D) ([]domain.TrashItem, error) {
	cur, err := s.db.Collection(collTrash).Find(ctx, filter, options.Find().SetSort(order))
	if err != nil {
		return nil, err
	}
	var docs []trashDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	items := make([]domain.TrashItem, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].item())
	}
	return items, nil
}

func (s *mongoStore) DeleteTrashItem(ctx context.Context, id string) error {
	_, err := s.db.Collection(collTrash).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *mongoStore) DeleteTrashAt(ctx context.Context, physicalLocation string) error {
	_, err := s.db.Collection(collTrash).DeleteMany(ctx, bson.M{"physical_location": physicalLocation})
	return err
}

// ── Snapshots ──────────────────────────────────────────────

type snapshotDoc struct {
	Token            string    `bson:"_id"`
	EntityType       string    `bson:"entity_type"`
	EntityID         string    `bson:"entity_id"`
	PhysicalLocation string    `bson:"physical_location"`
	SourceOperation  string    `bson:"source_operation"`
	OperationKind    string    `bson:"operation_kind"`
	PriorState       string    `bson:"prior_state"`
	OwnerUserID      string    `bson:"owner_user_id"`
	CapturedAt       time.Time `bson:"captured_at"`
}

func (s *mongoStore) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	_, err := s.db.Collection(collSnapshots).InsertOne(ctx, snapshotDoc{
		Token:            snap.Token,
		EntityType:       snap.EntityType,
		EntityID:         snap.EntityID,
		PhysicalLocation: snap.PhysicalLocation,
		SourceOperation:  snap.SourceOperation,
		OperationKind:    string(snap.OperationKind),
		PriorState:       string(snap.PriorState),
		OwnerUserID:      snap.OwnerUserID,
		CapturedAt:       snap.CapturedAt.UTC(),
	})
	return err
}

func (s *mongoStore) GetSnapshot(ctx context.Context, token string) (*domain.Snapshot, error) {
	var doc snapshotDoc
	err := s.db.Collection(collSnapshots).FindOne(ctx, bson.M{"_id": token}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound("snapshot not found: %s", token)
	}
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{
		Token:            doc.Token,
		EntityType:       doc.EntityType,
		EntityID:         doc.EntityID,
		PhysicalLocation: doc.PhysicalLocation,
		SourceOperation:  doc.SourceOperation,
		OperationKind:    domain.OperationKind(doc.OperationKind),
		PriorState:       []byte(doc.PriorState),
		OwnerUserID:      doc.OwnerUserID,
		CapturedAt:       doc.CapturedAt,
	}, nil
}

func (s *mongoStore) DeleteSnapshotsFor(ctx context.Context, entityType, entityID string) error {
	_, err := s.db.Collection(collSnapshots).DeleteMany(ctx, bson.M{"entity_type": entityType, "entity_id": entityID})
	return err
}

func (s *mongoStore) DeleteSnapshotsAt(ctx context.Context, physicalLocation string) error {
	_, err := s.db.Collection(collSnapshots).DeleteMany(ctx, bson.M{"physical_location": physicalLocation})
	return err
}

var _ domain.BackingStore = (*mongoStore)(nil)
