package main

import (
	"atenda/internal/bookings/handler"
	"atenda/internal/bookings/repository"
	"atenda/internal/bookings/service"
	"atenda/internal/bookings/validator"
	"atenda/pkg/app"
	"atenda/pkg/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()
	cfg.ConnectMongo()

	cfg.Log.Info("Starting Bookings service")
	bookingService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.BookingService {
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewSlotLockRepository(cfg)
	invoiceRepo := repository.NewMongoInvoiceRepository(cfg)
	outboxRepo := repository.NewMongoOutboxRepository(cfg)

	bookingService := service.NewBookingService(
		bookingRepo,
		lockRepo,
		invoiceRepo,
		outboxRepo,
		bookingValidator,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService
}
