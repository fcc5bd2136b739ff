package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/infra/postgres"
	pgmigrations "quizmaster-service/internal/infra/postgres/migrations"
	infraredis "quizmaster-service/internal/infra/redis"
)

func TestAttemptLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.Open(pgURL)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	catalogStore := postgres.NewCatalogStore(db)
	attemptStore := postgres.NewAttemptStore(db)
	userStore := postgres.NewUserStore(db)
	reportStore := postgres.NewReportStore(pool)

	auth := app.NewAuthService(userStore)
	catalog := app.NewCatalogService(catalogStore, attemptStore)
	attempts := app.NewAttemptService(catalogStore, attemptStore)
	stats := app.NewStatsService(reportStore)

	user, err := auth.Register(ctx, app.RegisterInput{Email: "alice@example.com", Password: "correct horse", FullName: "Alice"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	subject, err := catalog.CreateSubject(ctx, app.SubjectInput{Name: "Mathematics", Code: "MATH"})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	now := time.Now().UTC()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)
	quiz, err := catalog.CreateQuiz(ctx, app.QuizInput{Title: "Algebra Basics", SubjectID: subject.ID, StartTime: &start, EndTime: &end})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	mcq, err := catalog.AddQuestion(ctx, app.QuestionInput{
		QuizID: quiz.ID, Text: "What is 2 + 2?", Marks: 4, NegativeMarks: 1,
		Options: []string{"3", "4", "5"}, CorrectIndices: []int{1},
	})
	if err != nil {
		t.Fatalf("add mcq: %v", err)
	}
	msq, err := catalog.AddQuestion(ctx, app.QuestionInput{
		QuizID: quiz.ID, Text: "Select the primes", Marks: 6, Type: domain.MultiChoice,
		Options: []string{"2", "3", "5", "6"}, CorrectIndices: []int{0, 1, 2},
	})
	if err != nil {
		t.Fatalf("add msq: %v", err)
	}

	started, err := attempts.Start(ctx, user.ID, quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	repeat, err := attempts.Start(ctx, user.ID, quiz.ID)
	if err != nil {
		t.Fatalf("repeat start: %v", err)
	}
	if !repeat.AlreadyStarted || repeat.AttemptID != started.AttemptID {
		t.Fatalf("repeat start not idempotent: %+v vs %+v", repeat, started)
	}

	// Wrong MCQ option plus two of three MSQ options: -1 + 4 = 3.
	wrong := wrongOptionID(t, mcq)
	result, err := attempts.Submit(ctx, started.AttemptID, user.ID, map[int64][]int64{
		mcq.ID: {wrong},
		msq.ID: {msq.CorrectOptions[0], msq.CorrectOptions[1]},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 3 || result.TotalMarks != 10 {
		t.Fatalf("expected score 3 of 10, got %v of %v", result.Score, result.TotalMarks)
	}

	if _, err := attempts.Submit(ctx, started.AttemptID, user.ID, nil); err != domain.ErrAttemptSubmitted {
		t.Fatalf("expected ErrAttemptSubmitted, got %v", err)
	}

	lb, err := stats.QuizLeaderboard(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].Score != 3 || lb.Entries[0].FullName != "Alice" {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}

	// The stats cache serves the second hit without recomputing.
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	cache := infraredis.NewStatsCache(redisClient, 5*time.Minute)
	loads := 0
	load := func(ctx context.Context) ([]byte, error) {
		loads++
		lb, err := stats.QuizLeaderboard(ctx, quiz.ID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(lb)
	}
	key := fmt.Sprintf("stats:leaderboard:%d", quiz.ID)
	if _, err := cache.GetOrLoad(ctx, key, load); err != nil {
		t.Fatalf("cache load: %v", err)
	}
	payload, err := cache.GetOrLoad(ctx, key, load)
	if err != nil {
		t.Fatalf("cache hit: %v", err)
	}
	if loads != 1 {
		t.Fatalf("expected one load, got %d", loads)
	}
	var cached domain.Leaderboard
	if err := json.Unmarshal(payload, &cached); err != nil {
		t.Fatalf("unmarshal cached: %v", err)
	}
	if len(cached.Entries) != 1 || cached.Entries[0].Score != 3 {
		t.Fatalf("unexpected cached leaderboard %+v", cached.Entries)
	}
}

func wrongOptionID(t *testing.T, q *domain.Question) int64 {
	t.Helper()
	correct := make(map[int64]struct{}, len(q.CorrectOptions))
	for _, id := range q.CorrectOptions {
		correct[id] = struct{}{}
	}
	for _, opt := range q.Options {
		if _, ok := correct[opt.ID]; !ok {
			return opt.ID
		}
	}
	t.Fatalf("no wrong option on question %d", q.ID)
	return 0
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
