package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the shared ContentStorer suite against a factory so the
// in-memory and SQLite implementations stay interchangeable.
func testStore(t *testing.T, newStore func(t *testing.T) ContentStorer) {
	t.Run("BooksOrderedByNumber", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.AddBook(&Book{Name: "Éxodo", BookNumber: 2, Testament: "old", Chapters: 40}))
		require.NoError(t, s.AddBook(&Book{Name: "Génesis", BookNumber: 1, Testament: "old", Chapters: 50}))
		require.NoError(t, s.AddBook(&Book{Name: "Mateo", BookNumber: 40, Testament: "new", Chapters: 28}))

		books, err := s.ListBooks(ctx)
		require.NoError(t, err)
		require.Len(t, books, 3)
		assert.Equal(t, "Génesis", books[0].Name)
		assert.Equal(t, "Éxodo", books[1].Name)
		assert.Equal(t, "Mateo", books[2].Name)

		count, err := s.CountBooks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("ChapterCount", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.AddBook(&Book{Name: "Salmos", BookNumber: 19, Testament: "old", Chapters: 150}))

		n, err := s.ChapterCount(ctx, "Salmos")
		require.NoError(t, err)
		assert.Equal(t, 150, n)

		n, err = s.ChapterCount(ctx, "NoExiste")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("VersesOrderedWithinChapter", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.AddBook(&Book{Name: "Juan", BookNumber: 43, Testament: "new", Chapters: 21}))
		require.NoError(t, s.AddVerse(&Verse{BookID: 1, BookName: "Juan", Chapter: 3, Verse: 17, Text: "Porque no envió Dios a su Hijo al mundo para condenar al mundo"}))
		require.NoError(t, s.AddVerse(&Verse{BookID: 1, BookName: "Juan", Chapter: 3, Verse: 16, Text: "Porque de tal manera amó Dios al mundo", TextTzotzil: "Yu'un ti Diose toj ech'em la sk'an li krixchanoetike"}))
		require.NoError(t, s.AddVerse(&Verse{BookID: 1, BookName: "Juan", Chapter: 4, Verse: 1, Text: "Cuando, pues, el Señor entendió"}))

		verses, err := s.VersesForChapter(ctx, "Juan", 3)
		require.NoError(t, err)
		require.Len(t, verses, 2)
		assert.Equal(t, 16, verses[0].Verse)
		assert.Equal(t, 17, verses[1].Verse)
		assert.NotEmpty(t, verses[0].TextTzotzil)
		assert.Empty(t, verses[1].TextTzotzil)

		verses, err = s.VersesForChapter(ctx, "Juan", 99)
		require.NoError(t, err)
		assert.Empty(t, verses)
	})

	t.Run("GetVerse", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.AddBook(&Book{Name: "Juan", BookNumber: 43, Testament: "new", Chapters: 21}))
		require.NoError(t, s.AddVerse(&Verse{BookID: 1, BookName: "Juan", Chapter: 3, Verse: 16, Text: "Porque de tal manera amó Dios al mundo"}))

		v, err := s.GetVerse(ctx, "Juan", 3, 16)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "Juan", v.BookName)
		assert.Contains(t, v.Text, "amó Dios")
		// One language missing is a valid record, not an error.
		assert.Empty(t, v.TextTzotzil)

		v, err = s.GetVerse(ctx, "Juan", 3, 99)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("SearchMatchesEitherLanguage", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.AddBook(&Book{Name: "Juan", BookNumber: 43, Testament: "new", Chapters: 21}))
		require.NoError(t, s.AddVerse(&Verse{BookID: 1, BookName: "Juan", Chapter: 1, Verse: 1, Text: "En el principio era el Verbo", TextTzotzil: "Ta sliqueb to'ox"}))
		require.NoError(t, s.AddVerse(&Verse{BookID: 1, BookName: "Juan", Chapter: 1, Verse: 2, Text: "Este era en el principio con Dios"}))

		hits, err := s.SearchVerses(ctx, "principio")
		require.NoError(t, err)
		assert.Len(t, hits, 2)

		hits, err = s.SearchVerses(ctx, "sliqueb")
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, 1, hits[0].Verse)

		hits, err = s.SearchVerses(ctx, "zzz-no-match")
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("SearchCapped", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.AddBook(&Book{Name: "Salmos", BookNumber: 19, Testament: "old", Chapters: 150}))
		for i := 1; i <= SearchLimit+20; i++ {
			require.NoError(t, s.AddVerse(&Verse{
				BookID: 1, BookName: "Salmos", Chapter: 1, Verse: i,
				Text: fmt.Sprintf("Alabad a Jehová %d", i),
			}))
		}

		hits, err := s.SearchVerses(ctx, "Alabad")
		require.NoError(t, err)
		assert.Len(t, hits, SearchLimit)
	})

	t.Run("Promises", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		p, err := s.RandomPromise(ctx)
		require.NoError(t, err)
		assert.Nil(t, p)

		require.NoError(t, s.AddPromise(&Promise{Text: "Nunca te dejaré", ImageURL: "/img/1.jpg"}))
		require.NoError(t, s.AddPromise(&Promise{Text: "Yo estoy contigo"}))

		p, err = s.RandomPromise(ctx)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.NotEmpty(t, p.Text)

		all, err := s.AllPromises(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestMemStore(t *testing.T) {
	testStore(t, func(t *testing.T) ContentStorer {
		s := NewMemStore()
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	testStore(t, func(t *testing.T) ContentStorer {
		s, err := NewSQLiteStore()
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
