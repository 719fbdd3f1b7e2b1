// migrate aplica el esquema del libro de stock y, opcionalmente, carga la réplica del catálogo
// desde un CSV (id,sku,nombre,precio).
//
// Uso: go run ./cmd/migrate [-database-url URL] [-tenant 7 -seed-products productos.csv]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
)

var (
	databaseURL  = flag.String("database-url", "", "connection string; por defecto usa la configuración (DATABASE_URL / DB_*)")
	timeout      = flag.Duration("timeout", 60*time.Second, "tiempo máximo de la ejecución")
	seedProducts = flag.String("seed-products", "", "CSV id,sku,nombre,precio para poblar la réplica del catálogo")
	tenantID     = flag.Int64("tenant", 0, "empresa dueña de los productos del CSV")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("cargar configuración: %v", err)
	}
	if *databaseURL != "" {
		cfg.DB.DatabaseURL = *databaseURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if cfg.DB.DatabaseURL != "" {
		log.Println("conectando con DATABASE_URL")
	} else {
		log.Printf("conectando a %s:%d/%s", cfg.DB.Host, cfg.DB.Port, cfg.DB.DBName)
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("conectar: %v", err)
	}
	defer pool.Close()

	applied, err := postgres.Migrate(ctx, pool)
	if err != nil {
		log.Fatalf("migrar: %v", err)
	}
	for _, name := range applied {
		log.Printf("aplicada %s", name)
	}

	if *seedProducts == "" {
		log.Println("migraciones completadas")
		return
	}
	if *tenantID <= 0 {
		log.Fatalf("-tenant es obligatorio con -seed-products")
	}

	f, err := os.Open(*seedProducts)
	if err != nil {
		log.Fatalf("abrir CSV: %v", err)
	}
	defer f.Close()

	products, err := parseProducts(f, *tenantID, time.Now().UTC())
	if err != nil {
		log.Fatalf("leer CSV: %v", err)
	}
	repo := postgres.NewProductRepository(pool)
	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			log.Fatalf("producto %d: %v", p.ID, err)
		}
	}
	log.Printf("catálogo: %d productos sincronizados para la empresa %d", len(products), *tenantID)
}
