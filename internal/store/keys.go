package store

import (
	"fmt"
	"strconv"
)

// Key layout:
//
//	book:<id>                                 -> JSON domain.Book
//	book:idx:title_author:<title>\x1f<author> -> book id
//	clip:<id>                                 -> JSON domain.StoredClipping
//	clip:idx:book:<book id>:<original id>     -> clipping id
//	history:<entry id>                        -> JSON domain.BatchHistoryEntry
//	seq:book, seq:clip                        -> Badger sequences
//
// Numeric IDs are zero padded so keys sort by ID.
const (
	bookPrefix    = "book:"
	clipPrefix    = "clip:"
	historyPrefix = "history:"
	indexInfix    = "idx:"

	idxTitleAuthor = "title_author"
	idxBook        = "book"

	bookSeqKey = "seq:book"
	clipSeqKey = "seq:clip"

	// titleAuthorSep cannot appear in ordinary titles.
	titleAuthorSep = "\x1f"
)

func idString(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func parseID(raw []byte) (int64, error) {
	return strconv.ParseInt(string(raw), 10, 64)
}

// buildKey constructs a database key from prefix and suffix.
func buildKey(prefix, suffix string) []byte {
	buf := make([]byte, 0, len(prefix)+len(suffix))
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

// buildIndexKey constructs an index key from prefix, index name, and value.
func buildIndexKey(prefix, indexName, value string) []byte {
	buf := make([]byte, 0, len(prefix)+len(indexInfix)+len(indexName)+1+len(value))
	buf = append(buf, prefix...)
	buf = append(buf, indexInfix...)
	buf = append(buf, indexName...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	return buf
}

func bookKey(id int64) []byte { return buildKey(bookPrefix, idString(id)) }

func clipKey(id int64) []byte { return buildKey(clipPrefix, idString(id)) }

func historyKey(id string) []byte { return buildKey(historyPrefix, id) }

func titleAuthorIndexKey(title, author string) []byte {
	return buildIndexKey(bookPrefix, idxTitleAuthor, title+titleAuthorSep+author)
}

// bookClippingsIndexPrefix covers every clipping index entry of one book.
func bookClippingsIndexPrefix(bookID int64) []byte {
	return buildIndexKey(clipPrefix, idxBook, idString(bookID)+":")
}

func bookClippingIndexKey(bookID int64, originalID string) []byte {
	return append(bookClippingsIndexPrefix(bookID), originalID...)
}

// isIndexKey reports whether key is a secondary index entry under prefix.
func isIndexKey(key []byte, prefix string) bool {
	p := prefix + indexInfix
	return len(key) >= len(p) && string(key[:len(p)]) == p
}
