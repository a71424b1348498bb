package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	catIDs := seedProductCategories(db)
	subIDs := seedProductSubcategories(db, catIDs)
	svcCatIDs := seedServiceCategories(db)
	unitIDs := seedUnits(db)
	seedProducts(db, catIDs, subIDs, unitIDs)
	seedServices(db, svcCatIDs)
	seedCustomers(db)
	seedPromotions(db)

	log.Println("Seeding completed successfully!")
}

func seedProductCategories(db *sql.DB) map[string]string {
	categories := []string{
		"Plantas de interior",
		"Plantas de exterior",
		"Árboles y arbustos",
		"Macetas",
		"Sustratos y abonos",
		"Herramientas",
	}

	fmt.Println("Seeding product categories...")
	ids := make(map[string]string)
	for _, name := range categories {
		var id string
		err := db.QueryRow(`
			INSERT INTO product_categories (name)
			VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id;
		`, name).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert category %s: %v", name, err)
			continue
		}
		ids[name] = id
	}
	return ids
}

func seedProductSubcategories(db *sql.DB, catIDs map[string]string) map[string]string {
	subcategories := []struct {
		Category string
		Name     string
	}{
		{"Plantas de exterior", "Rosales"},
		{"Plantas de exterior", "Aromáticas"},
		{"Plantas de exterior", "Plantines de estación"},
		{"Plantas de interior", "Suculentas"},
		{"Plantas de interior", "Helechos"},
		{"Árboles y arbustos", "Frutales"},
		{"Macetas", "Barro"},
		{"Macetas", "Plástico"},
	}

	fmt.Println("Seeding product subcategories...")
	ids := make(map[string]string)
	for _, s := range subcategories {
		catID, ok := catIDs[s.Category]
		if !ok {
			log.Printf("Missing category ID for %s", s.Category)
			continue
		}
		var id string
		err := db.QueryRow(`
			INSERT INTO product_subcategories (category_id, name)
			VALUES ($1, $2)
			ON CONFLICT (category_id, name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id;
		`, catID, s.Name).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert subcategory %s: %v", s.Name, err)
			continue
		}
		ids[s.Name] = id
	}
	return ids
}

func seedServiceCategories(db *sql.DB) map[string]string {
	categories := []string{
		"Paisajismo",
		"Mantenimiento",
		"Envíos y plantado",
	}

	fmt.Println("Seeding service categories...")
	ids := make(map[string]string)
	for _, name := range categories {
		var id string
		err := db.QueryRow(`
			INSERT INTO service_categories (name)
			VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id;
		`, name).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert service category %s: %v", name, err)
			continue
		}
		ids[name] = id
	}
	return ids
}

func seedUnits(db *sql.DB) map[string]string {
	units := []struct {
		Name   string
		Abbrev string
	}{
		{"unidad", "u"},
		{"kilogramo", "kg"},
		{"litro", "l"},
		{"metro cuadrado", "m2"},
	}

	fmt.Println("Seeding units...")
	ids := make(map[string]string)
	for _, u := range units {
		var id string
		err := db.QueryRow(`
			INSERT INTO units (name, abbrev)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET abbrev = EXCLUDED.abbrev
			RETURNING id;
		`, u.Name, u.Abbrev).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert unit %s: %v", u.Name, err)
			continue
		}
		ids[u.Name] = id
	}
	return ids
}

func seedProducts(db *sql.DB, catIDs, subIDs, unitIDs map[string]string) {
	products := []struct {
		SKU         string
		Name        string
		Category    string
		Subcategory string
		Unit        string
		Price       string
		Stock       int
	}{
		{"ROSA-TREP-01", "Rosal trepador Pierre de Ronsard", "Plantas de exterior", "Rosales", "unidad", "8500", 40},
		{"ROSA-MIN-01", "Rosal mini en maceta 12", "Plantas de exterior", "Rosales", "unidad", "4200", 60},
		{"AROM-LAV-01", "Lavanda angustifolia", "Plantas de exterior", "Aromáticas", "unidad", "3800", 120},
		{"AROM-ROM-01", "Romero rastrero", "Plantas de exterior", "Aromáticas", "unidad", "3500", 80},
		{"PLAN-TOM-01", "Plantín de tomate platense", "Plantas de exterior", "Plantines de estación", "unidad", "950", 300},
		{"SUCU-ECH-01", "Echeveria elegans", "Plantas de interior", "Suculentas", "unidad", "2900", 150},
		{"HELE-SER-01", "Helecho serrucho", "Plantas de interior", "Helechos", "unidad", "6200", 35},
		{"FRUT-LIM-01", "Limonero 4 estaciones", "Árboles y arbustos", "Frutales", "unidad", "28500", 15},
		{"MACE-BAR-20", "Maceta de barro N°20", "Macetas", "Barro", "unidad", "5600", 90},
		{"MACE-PLA-30", "Maceta plástica N°30", "Macetas", "Plástico", "unidad", "3100", 200},
		{"SUST-5KG-01", "Sustrato premium 5kg", "Sustratos y abonos", "", "kilogramo", "4800", 140},
		{"HERR-TIJ-01", "Tijera de podar bypass", "Herramientas", "", "unidad", "15900", 25},
	}

	fmt.Println("Seeding products...")
	for _, p := range products {
		catID, ok := catIDs[p.Category]
		if !ok {
			log.Printf("Missing category ID for %s", p.Category)
			continue
		}
		var subID, unitID sql.NullString
		if p.Subcategory != "" {
			if id, ok := subIDs[p.Subcategory]; ok {
				subID = sql.NullString{String: id, Valid: true}
			}
		}
		if id, ok := unitIDs[p.Unit]; ok {
			unitID = sql.NullString{String: id, Valid: true}
		}
		_, err := db.Exec(`
			INSERT INTO products (sku, name, category_id, subcategory_id, unit_id, price, stock, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, true)
			ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name,
				category_id = EXCLUDED.category_id,
				subcategory_id = EXCLUDED.subcategory_id,
				unit_id = EXCLUDED.unit_id,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock;
		`, p.SKU, p.Name, catID, subID, unitID, p.Price, p.Stock)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
		}
	}
}

func seedServices(db *sql.DB, catIDs map[string]string) {
	services := []struct {
		Name     string
		Category string
		Price    string
	}{
		{"Diseño de cantero chico", "Paisajismo", "45000"},
		{"Mantenimiento mensual de jardín", "Mantenimiento", "32000"},
		{"Poda de arbustos", "Mantenimiento", "18000"},
		{"Envío y plantado en domicilio", "Envíos y plantado", "12000"},
	}

	fmt.Println("Seeding services...")
	for _, s := range services {
		catID, ok := catIDs[s.Category]
		if !ok {
			log.Printf("Missing service category ID for %s", s.Category)
			continue
		}
		var exists bool
		if err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM services WHERE name = $1)`, s.Name).Scan(&exists); err != nil {
			log.Printf("Failed to check service %s: %v", s.Name, err)
			continue
		}
		if exists {
			continue
		}
		_, err := db.Exec(`
			INSERT INTO services (name, category_id, price, active)
			VALUES ($1, $2, $3, true);
		`, s.Name, catID, s.Price)
		if err != nil {
			log.Printf("Failed to seed service %s: %v", s.Name, err)
		}
	}
}

func seedCustomers(db *sql.DB) {
	customers := []struct {
		Name            string
		DocNumber       string
		Email           string
		FiscalCondition string
	}{
		{"Consumidor Final", "", "", "consumidor_final"},
		{"Jardines del Plata SRL", "30-71234567-8", "compras@jardinesdelplata.com.ar", "responsable_inscripto"},
		{"María Fernández", "27-28555666-4", "maria.fernandez@example.com", "monotributo"},
		{"Club Atlético Los Tilos", "30-65888999-1", "administracion@clublostilos.org.ar", "exento"},
	}

	fmt.Println("Seeding customers...")
	for _, c := range customers {
		var exists bool
		if err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM customers WHERE name = $1)`, c.Name).Scan(&exists); err != nil {
			log.Printf("Failed to check customer %s: %v", c.Name, err)
			continue
		}
		if exists {
			continue
		}
		_, err := db.Exec(`
			INSERT INTO customers (name, doc_number, email, fiscal_condition)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4);
		`, c.Name, c.DocNumber, c.Email, c.FiscalCondition)
		if err != nil {
			log.Printf("Failed to seed customer %s: %v", c.Name, err)
		}
	}
}

func seedPromotions(db *sql.DB) {
	promotions := []struct {
		Name      string
		Mechanism string
		TakeQty   sql.NullInt32
		PayQty    sql.NullInt32
		Tiers     sql.NullString
		Scope     string
	}{
		{
			Name:      "3x2 en plantines de estación",
			Mechanism: "x_for_y",
			TakeQty:   sql.NullInt32{Int32: 3, Valid: true},
			PayQty:    sql.NullInt32{Int32: 2, Valid: true},
			Scope:     "all_products",
		},
		{
			Name:      "Descuento por cantidad en sustratos",
			Mechanism: "progressive_discount",
			Tiers:     sql.NullString{String: `[{"quantity":5,"percentage":"10"},{"quantity":10,"percentage":"20"}]`, Valid: true},
			Scope:     "all_products",
		},
	}

	fmt.Println("Seeding promotions...")
	for _, p := range promotions {
		var exists bool
		if err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM promotions WHERE name = $1)`, p.Name).Scan(&exists); err != nil {
			log.Printf("Failed to check promotion %s: %v", p.Name, err)
			continue
		}
		if exists {
			continue
		}
		_, err := db.Exec(`
			INSERT INTO promotions (name, active, mechanism, take_qty, pay_qty, tiers, scope, combinable)
			VALUES ($1, true, $2, $3, $4, $5, $6, false);
		`, p.Name, p.Mechanism, p.TakeQty, p.PayQty, p.Tiers, p.Scope)
		if err != nil {
			log.Printf("Failed to seed promotion %s: %v", p.Name, err)
		}
	}
}
