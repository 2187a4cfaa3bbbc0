package resolver

import "github.com/tzotzilbible/gobible/internal/store"

// Static fallback data, bundled at build time. Served only when both the
// local store and the key-value cache miss.

const (
	testamentOld = "Antiguo Testamento"
	testamentNew = "Nuevo Testamento"
)

type bookEntry struct {
	name     string
	chapters int
}

var oldTestament = []bookEntry{
	{"Génesis", 50}, {"Éxodo", 40}, {"Levítico", 27}, {"Números", 36},
	{"Deuteronomio", 34}, {"Josué", 24}, {"Jueces", 21}, {"Rut", 4},
	{"1 Samuel", 31}, {"2 Samuel", 24}, {"1 Reyes", 22}, {"2 Reyes", 25},
	{"1 Crónicas", 29}, {"2 Crónicas", 36}, {"Esdras", 10}, {"Nehemías", 13},
	{"Ester", 10}, {"Job", 42}, {"Salmos", 150}, {"Proverbios", 31},
	{"Eclesiastés", 12}, {"Cantares", 8}, {"Isaías", 66}, {"Jeremías", 52},
	{"Lamentaciones", 5}, {"Ezequiel", 48}, {"Daniel", 12}, {"Oseas", 14},
	{"Joel", 3}, {"Amós", 9}, {"Abdías", 1}, {"Jonás", 4}, {"Miqueas", 7},
	{"Nahúm", 3}, {"Habacuc", 3}, {"Sofonías", 3}, {"Hageo", 2},
	{"Zacarías", 14}, {"Malaquías", 4},
}

var newTestament = []bookEntry{
	{"Mateo", 28}, {"Marcos", 16}, {"Lucas", 24}, {"Juan", 21},
	{"Hechos", 28}, {"Romanos", 16}, {"1 Corintios", 16}, {"2 Corintios", 13},
	{"Gálatas", 6}, {"Efesios", 6}, {"Filipenses", 4}, {"Colosenses", 4},
	{"1 Tesalonicenses", 5}, {"2 Tesalonicenses", 3}, {"1 Timoteo", 6},
	{"2 Timoteo", 4}, {"Tito", 3}, {"Filemón", 1}, {"Hebreos", 13},
	{"Santiago", 5}, {"1 Pedro", 5}, {"2 Pedro", 3}, {"1 Juan", 5},
	{"2 Juan", 1}, {"3 Juan", 1}, {"Judas", 1}, {"Apocalipsis", 22},
}

// DefaultBooks returns the bundled 66-book list.
func DefaultBooks() []*store.Book {
	books := make([]*store.Book, 0, len(oldTestament)+len(newTestament))
	num := 1
	for _, e := range oldTestament {
		books = append(books, &store.Book{
			ID: int64(num), Name: e.name, BookNumber: num,
			Testament: testamentOld, Chapters: e.chapters,
		})
		num++
	}
	for _, e := range newTestament {
		books = append(books, &store.Book{
			ID: int64(num), Name: e.name, BookNumber: num,
			Testament: testamentNew, Chapters: e.chapters,
		})
		num++
	}
	return books
}

// offlinePromises is the built-in promise list used when structured
// storage is absent.
var offlinePromises = []string{
	"Juan 3:16 - Porque de tal manera amó Dios al mundo, que ha dado a su Hijo unigénito, para que todo aquel que en él cree, no se pierda, mas tenga vida eterna.",
	"Salmos 23:1 - El Señor es mi pastor; nada me faltará.",
	"Isaías 41:10 - No temas, porque yo estoy contigo; no desmayes, porque yo soy tu Dios que te esfuerzo.",
	"Filipenses 4:13 - Todo lo puedo en Cristo que me fortalece.",
	"Jeremías 29:11 - Porque yo sé los planes que tengo para vosotros, planes de bienestar y no de calamidad.",
	"Romanos 8:28 - Y sabemos que a los que aman a Dios, todas las cosas les ayudan a bien.",
	"Mateo 11:28 - Venid a mí todos los que estáis trabajados y cargados, y yo os haré descansar.",
	"Josué 1:9 - Mira que te mando que te esfuerces y seas valiente; no temas ni desmayes.",
	"Proverbios 3:5-6 - Fíate de Jehová de todo tu corazón, y no te apoyes en tu propia prudencia.",
	"Juan 14:27 - La paz os dejo, mi paz os doy; yo no os la doy como el mundo la da.",
}

// loadingVerse is the "no data available" sentinel returned when a chapter
// cannot be served from any tier.
func loadingVerse(bookName string, chapter int) *store.Verse {
	return &store.Verse{
		ID:          1,
		BookID:      1,
		BookName:    bookName,
		Chapter:     chapter,
		Verse:       1,
		Text:        "Cargando versículos...",
		TextTzotzil: "Ta xjatav li k'opetike...",
	}
}
