package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/classroll/apiserver/config"
	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/credentials"
	"github.com/classroll/apiserver/internal/db"
	"github.com/classroll/apiserver/internal/mq"
	"github.com/classroll/apiserver/internal/notify"
	"github.com/classroll/apiserver/internal/services"
	"github.com/classroll/apiserver/internal/store"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// App holds the services shared by the HTTP server and the notification
// worker.
type App struct {
	DB            *sqlx.DB
	MQ            *mq.MQ
	Queue         *notify.Queue
	Signer        *auth.Signer
	Users         *services.UserService
	Tokens        *services.TokenService
	Contacts      *services.ContactService
	Records       *services.RecordsService
	Notifications *services.Dispatcher
	Authenticator *services.Authenticator

	userRepo *store.UserRepository
	log      *zap.Logger
}

// NewApp connects to the database and the optional message queue and wires
// the services. A missing JWT secret is fatal.
func NewApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	signer, err := auth.NewSigner(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}

	location, err := loadLocation(cfg.Auth.Timezone)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	directory, err := credentials.New(ctx, cfg.Credentials)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("credentials directory: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("message queue: %w", err)
	}
	var queue *notify.Queue
	if broker != nil {
		queue = notify.NewQueue(broker, cfg.MQ.Channel)
	}

	userRepo := store.NewUserRepository(dbConn.DB)
	tokenRepo := store.NewTokenRepository(dbConn.DB)
	contactRepo := store.NewContactRepository(dbConn.DB)

	notifier := notify.NewNotifier(notify.NewTransport(cfg.Email, log), cfg.Email)
	dispatcher := services.NewDispatcher(userRepo, contactRepo, notifier, queue, log)

	users := services.NewUserService(userRepo, tokenRepo, directory, dispatcher, log)
	tokens := services.NewTokenService(tokenRepo, userRepo, signer, location, cfg.Auth.SessionTTL, log)

	return &App{
		DB:            dbConn,
		MQ:            broker,
		Queue:         queue,
		Signer:        signer,
		Users:         users,
		Tokens:        tokens,
		Contacts:      services.NewContactService(contactRepo, dispatcher, log),
		Records:       services.NewRecordsService(store.NewRecords(dbConn)),
		Notifications: dispatcher,
		Authenticator: services.NewAuthenticator(signer, users, tokens),
		userRepo:      userRepo,
		log:           log,
	}, nil
}

// EnsureAdmin creates or promotes the bootstrap administrator.
func (a *App) EnsureAdmin(ctx context.Context, email, name, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errors.New("admin email and password are required")
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "Administrator"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user, err := a.userRepo.EnsureAdmin(ctx, email, name, string(hash))
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	a.log.Info("admin account ready", zap.Int("user_id", user.ID), zap.String("email", user.Email))
	return nil
}

// Close releases the database and queue connections.
func (a *App) Close() error {
	var errList []error
	if a.MQ != nil {
		errList = append(errList, a.MQ.Close())
	}
	if a.DB != nil {
		errList = append(errList, a.DB.Close())
	}
	return errors.Join(errList...)
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return location, nil
}
