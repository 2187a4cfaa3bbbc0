// Command bibledb exercises the full native stack against a real seed
// database: copy-on-first-run, lifecycle validation, and tiered reads.
//
// Usage:
//
//	bibledb -seed assets/bible.db -data ./data -query "Dios"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	hackos "github.com/hack-pad/hackpadfs/os"

	"github.com/tzotzilbible/gobible/internal/store"
	"github.com/tzotzilbible/gobible/pkg/cache"
	"github.com/tzotzilbible/gobible/pkg/resolver"
)

func main() {
	seedPath := flag.String("seed", "", "path to the bundled SQLite seed (required)")
	dataDir := flag.String("data", "./data", "directory holding the working copy")
	seedVersion := flag.String("seedver", "", "seed version tag; a mismatch forces a recopy")
	query := flag.String("query", "", "optional search query to run after init")
	flag.Parse()

	if *seedPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	osfs := hackos.NewFS()
	destDir, err := osfs.FromOSPath(*dataDir)
	if err != nil {
		log.Fatalf("resolve data dir: %v", err)
	}

	dbPath := filepath.Join(*dataDir, "bible.db")
	life := store.NewLifecycle(store.LifecycleConfig{
		Seeder: &store.Seeder{
			Source:  os.DirFS(filepath.Dir(*seedPath)),
			Asset:   filepath.Base(*seedPath),
			Dest:    osfs,
			Dir:     destDir,
			File:    "bible.db",
			Version: *seedVersion,
		},
		Opener: func() (store.ContentStorer, error) {
			return store.NewSQLiteStoreAtPath(dbPath)
		},
	})
	defer life.Close()

	ctx := context.Background()
	if !life.Initialize(ctx) {
		log.Fatalf("initialization did not reach ready: status=%s err=%v",
			life.Status(), life.InitError())
	}
	fmt.Println("  ✓ lifecycle ready")

	st, _ := life.Store()
	books, err := st.CountBooks(ctx)
	if err != nil {
		log.Fatalf("CountBooks failed: %v", err)
	}
	verses, err := st.CountVerses(ctx)
	if err != nil {
		log.Fatalf("CountVerses failed: %v", err)
	}
	fmt.Printf("  ✓ store has %d books, %d verses\n", books, verses)

	res := resolver.New(life, cache.NewMemKV(), resolver.Config{})

	list := res.GetBooks(ctx)
	fmt.Printf("  ✓ GetBooks returned %d books\n", len(list))

	if len(list) > 0 {
		first := list[0]
		chapters := res.GetChapters(ctx, first.Name)
		fmt.Printf("  ✓ %s has %d chapters\n", first.Name, len(chapters))

		vs := res.GetVerses(ctx, first.Name, 1)
		fmt.Printf("  ✓ %s 1 has %d verses\n", first.Name, len(vs))
	}

	promise := res.GetRandomPromise(ctx)
	fmt.Printf("  ✓ random promise: %.60s…\n", promise)

	if *query != "" {
		hits := res.SearchVerses(ctx, *query)
		fmt.Printf("  ✓ search %q: %d hits\n", *query, len(hits))
		for i, v := range hits {
			if i == 3 {
				fmt.Println("    …")
				break
			}
			fmt.Printf("    %s %d:%d %.70s\n", v.BookName, v.Chapter, v.Verse, v.Text)
		}
	}

	fmt.Println("\n✅ All checks passed!")
}
