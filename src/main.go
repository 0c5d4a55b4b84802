package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"vismadk/src/adk"
	"vismadk/src/catalog"
	"vismadk/src/entities"
	"vismadk/src/helpers"
	"vismadk/src/session"
	"vismadk/src/settings"
)

// printUsage prints helpful usage information
func printUsage() {
	log.Println("vismadk - typed accessor layer over an ADK-style record driver")
	log.Println("\nUsage:")
	log.Println("  vismadk [options]")
	log.Println("\nOptions:")
	flag.PrintDefaults()

	log.Println("\nExamples:")
	log.Println("  vismadk --entity=supplier")
	log.Println("  vismadk --entity=invoice --status=open --datafile=acme.bson")
}

func main() {
	args := settings.GetSettings()

	var entity, status string
	flag.DurationVar(&args.AcquireTimeout, "acquiretimeout", args.AcquireTimeout, "How long to wait for the company connection")
	flag.DurationVar(&args.PollInterval, "pollinterval", args.PollInterval, "Sleep interval between session polls")
	flag.StringVar(&args.DataFile, "datafile", "", "BSON snapshot to load into the embedded driver")
	flag.BoolVar(&args.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&args.Debug, "debug", false, "Enable debug mode")
	flag.StringVar(&entity, "entity", "supplier", "Entity type to inspect")
	flag.StringVar(&status, "status", "", "Filter invoices by status instead of listing fields")

	flag.Parse()

	logger, err := helpers.NewLogger(args.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		printUsage()
		os.Exit(1)
	}
	defer logger.Sync()

	// The demo runs against the embedded driver with its sample company.
	const companyPath = "companies/sample"
	driver, err := adk.SampleDriver(logger, companyPath)
	if err != nil {
		logger.Fatalf("Failed to build sample driver: %v", err)
	}
	if args.DataFile != "" {
		if err := driver.LoadSnapshot(args.DataFile); err != nil {
			logger.Fatalf("Failed to load snapshot: %v", err)
		}
	}

	arbiter := session.NewArbiter(driver, args, logger)
	defer arbiter.Shutdown()

	if err := arbiter.RegisterCompany("Sample AB", "common", companyPath, "system", "sample"); err != nil {
		logger.Fatalf("Failed to register company: %v", err)
	}

	sess, err := arbiter.Acquire("Sample AB")
	if err != nil {
		logger.Fatalf("Failed to acquire session: %v", err)
	}
	defer sess.Release()

	cat, err := catalog.NewFieldCatalog(driver, logger)
	if err != nil {
		logger.Fatalf("Failed to build field catalog: %v", err)
	}
	svc := entities.NewService(driver, cat, logger)

	if status != "" {
		if err := listInvoices(svc, status); err != nil {
			logger.Fatalf("Failed to list invoices: %v", err)
		}
		return
	}

	if err := describeEntity(cat, entity); err != nil {
		logger.Fatalf("Failed to describe entity: %v", err)
	}

	if args.Verbose {
		names, err := cat.Entities()
		if err != nil {
			logger.Fatalf("Failed to list entities: %v", err)
		}
		log.Printf("Driver exposes %d entity types: %v", len(names), names)
	}
}

func describeEntity(cat *catalog.FieldCatalog, entity string) error {
	fields, err := cat.Fields(entity)
	if err != nil {
		return err
	}
	log.Printf("Entity %s has %d fields:", entity, len(fields))
	for _, fd := range fields {
		log.Printf("  %-32s %-8s (%s)", fd.Name, fd.Type, fd.Symbol)
	}
	return nil
}

func listInvoices(svc *entities.Service, status string) error {
	invoices, err := svc.Entity("invoice")
	if err != nil {
		return err
	}
	rows, err := invoices.Filter(map[string]any{"invoice_status": status})
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		rec := rows.Record()
		number, err := rec.Get("invoice_number")
		if err != nil {
			return err
		}
		total, err := rec.Get("invoice_total")
		if err != nil {
			return err
		}
		due, err := rec.Get("invoice_due_date")
		if err != nil {
			return err
		}
		log.Printf("  invoice %-12v total %10.2f due %s", number, total, due.(time.Time).Format("2006-01-02"))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	log.Printf("%d invoices with status %q", count, status)
	return nil
}
