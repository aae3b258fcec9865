package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// sequenceBandwidth is how many IDs a Badger sequence leases at once.
const sequenceBandwidth = 100

// maxConflictRetries bounds how often a write transaction is replayed after
// Badger reports a conflicting concurrent commit.
const maxConflictRetries = 3

// Badger is the Store backed by a Badger database.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger

	bookSeq *badger.Sequence
	clipSeq *badger.Sequence

	now func() time.Time
}

// New opens a Badger-backed Store at path.
func New(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	bookSeq, err := db.GetSequence([]byte(bookSeqKey), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open book sequence: %w", err)
	}
	clipSeq, err := db.GetSequence([]byte(clipSeqKey), sequenceBandwidth)
	if err != nil {
		_ = bookSeq.Release()
		db.Close()
		return nil, fmt.Errorf("failed to open clipping sequence: %w", err)
	}

	store := &Badger{
		db:      db,
		logger:  logger,
		bookSeq: bookSeq,
		clipSeq: clipSeq,
		now:     time.Now,
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close releases the ID sequences and closes the database.
func (s *Badger) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	err := errors.Join(s.bookSeq.Release(), s.clipSeq.Release())
	return errors.Join(err, s.db.Close())
}

// Ping reports whether the database is open.
func (s *Badger) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// SaveClippings commits clippings in one Badger transaction.
func (s *Badger) SaveClippings(ctx context.Context, clippings []domain.Clipping) (*SaveResult, error) {
	return SaveClippings(ctx, s, clippings, s.now())
}

// UpdateClipping edits one stored clipping.
func (s *Badger) UpdateClipping(ctx context.Context, id int64, edit ClippingEdit) (*domain.StoredClipping, error) {
	return UpdateClipping(ctx, s, id, edit, s.now())
}

// DeleteClippings removes stored clippings and recounts their books.
func (s *Badger) DeleteClippings(ctx context.Context, ids []int64) (int, error) {
	return DeleteClippings(ctx, s, ids, s.now())
}

// DuplicateClippings copies stored clippings within their books.
func (s *Badger) DuplicateClippings(ctx context.Context, ids []int64) ([]*domain.StoredClipping, error) {
	return DuplicateClippings(ctx, s, ids, s.now())
}

// AddClipping writes a new clipping into a stored book.
func (s *Badger) AddClipping(ctx context.Context, bookID int64, c NewClipping) (*domain.StoredClipping, error) {
	return AddClipping(ctx, s, bookID, c, s.now())
}

// WithWriteTx runs fn in a read-write transaction.
func (s *Badger) WithWriteTx(ctx context.Context, fn func(tx WriteTx) error) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn, store: s})
	})
}

// update runs fn in a read-write transaction. A transaction that loses a
// conflict against a concurrent commit is replayed from scratch.
func (s *Badger) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if s.logger != nil {
			s.logger.Debug("write transaction conflict, retrying", "attempt", attempt+1)
		}
	}
	return err
}

// nextID draws the next numeric ID from seq. IDs start at 1.
func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

// getJSON decodes the value stored at key into dest.
// A missing key yields ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

// setJSON encodes value and stores it at key.
func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return txn.Set(key, data)
}

// getIndexedID reads the numeric ID stored in an index entry.
func getIndexedID(txn *badger.Txn, key []byte) (int64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	var id int64
	err = item.Value(func(val []byte) error {
		id, err = parseID(val)
		return err
	})
	return id, err
}

// exists checks if a key exists within txn.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// deletePrefix removes every key starting with prefix.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// badgerTx adapts a Badger transaction to WriteTx.
type badgerTx struct {
	txn   *badger.Txn
	store *Badger
}

func (t *badgerTx) FindBook(title, author string) (*domain.Book, error) {
	id, err := getIndexedID(t.txn, titleAuthorIndexKey(title, author))
	if err != nil {
		return nil, err
	}
	var book domain.Book
	if err := getJSON(t.txn, bookKey(id), &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (t *badgerTx) InsertBook(book *domain.Book) (int64, error) {
	indexKey := titleAuthorIndexKey(book.Title, book.Author)
	taken, err := exists(t.txn, indexKey)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, ErrAlreadyExists.WithMessage(fmt.Sprintf("book %q by %q already exists", book.Title, book.Author))
	}

	id, err := nextID(t.store.bookSeq)
	if err != nil {
		return 0, fmt.Errorf("next book id: %w", err)
	}
	book.ID = id

	if err := setJSON(t.txn, bookKey(id), book); err != nil {
		return 0, err
	}
	if err := t.txn.Set(indexKey, []byte(idString(id))); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *badgerTx) ClippingExists(bookID int64, originalID string) (bool, error) {
	return exists(t.txn, bookClippingIndexKey(bookID, originalID))
}

func (t *badgerTx) InsertClipping(c *domain.StoredClipping) (int64, error) {
	indexKey := bookClippingIndexKey(c.BookID, c.OriginalID)
	taken, err := exists(t.txn, indexKey)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, ErrAlreadyExists.WithMessage(fmt.Sprintf("clipping %s already stored", c.OriginalID))
	}

	id, err := nextID(t.store.clipSeq)
	if err != nil {
		return 0, fmt.Errorf("next clipping id: %w", err)
	}
	c.ID = id

	if err := setJSON(t.txn, clipKey(id), c); err != nil {
		return 0, err
	}
	if err := t.txn.Set(indexKey, []byte(idString(id))); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *badgerTx) CountClippings(bookID int64) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = bookClippingsIndexPrefix(bookID)

	it := t.txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		count++
	}
	return count, nil
}

func (t *badgerTx) SetClippingCount(bookID int64, count int, updatedAt time.Time) error {
	var book domain.Book
	if err := getJSON(t.txn, bookKey(bookID), &book); err != nil {
		return err
	}
	book.ClippingCount = count
	book.UpdatedAt = updatedAt
	return setJSON(t.txn, bookKey(bookID), &book)
}

func (t *badgerTx) GetBook(id int64) (*domain.Book, error) {
	var book domain.Book
	if err := getJSON(t.txn, bookKey(id), &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (t *badgerTx) GetClipping(id int64) (*domain.StoredClipping, error) {
	var c domain.StoredClipping
	if err := getJSON(t.txn, clipKey(id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateClipping overwrites a stored clipping. Book and original ID are part
// of the index key and must not change.
func (t *badgerTx) UpdateClipping(c *domain.StoredClipping) error {
	found, err := exists(t.txn, clipKey(c.ID))
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return setJSON(t.txn, clipKey(c.ID), c)
}

func (t *badgerTx) DeleteClipping(id int64) error {
	c, err := t.GetClipping(id)
	if err != nil {
		return err
	}
	if err := t.txn.Delete(clipKey(id)); err != nil {
		return err
	}
	return t.txn.Delete(bookClippingIndexKey(c.BookID, c.OriginalID))
}

var _ Store = (*Badger)(nil)
