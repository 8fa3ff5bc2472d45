package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Pipeline    Pipeline      `yaml:"pipeline"`
	Spotify     Spotify       `yaml:"spotify"`
	Embedder    Embedder      `yaml:"embedder"`
	Qdrant      Qdrant        `yaml:"qdrant"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

// Pipeline controls the per-job embedding fan-out. EmbedWorkers is kept
// small in deployments because the model computation is memory heavy.
type Pipeline struct {
	EmbedWorkers int           `yaml:"embed_workers"`
	TrackTimeout time.Duration `yaml:"track_timeout"`
}

type Spotify struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Embedder struct {
	URL       string `yaml:"url"`
	Dimension int    `yaml:"dimension"`
}

type Qdrant struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.workers", 2)
	viper.SetDefault("pipeline.embed_workers", 4)
	viper.SetDefault("pipeline.track_timeout_seconds", 60)
	viper.SetDefault("spotify.base_url", "https://api.spotify.com")
	viper.SetDefault("spotify.timeout_seconds", 30)
	viper.SetDefault("embedder.dimension", 1024)
	viper.SetDefault("qdrant.port", 6334)
	viper.SetDefault("qdrant.collection", "track_embeddings")
	viper.SetDefault("rabbitmq_kind", "topic")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq_host"),
		Port: viper.GetInt("rabbitmq_port"),
		User: viper.GetString("rabbitmq_user"),
		Pass: viper.GetString("rabbitmq_pass"),
		Kind: viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Pipeline: Pipeline{
			EmbedWorkers: viper.GetInt("pipeline.embed_workers"),
			TrackTimeout: time.Duration(viper.GetInt("pipeline.track_timeout_seconds")) * time.Second,
		},
		Spotify: Spotify{
			BaseURL: viper.GetString("spotify.base_url"),
			Timeout: time.Duration(viper.GetInt("spotify.timeout_seconds")) * time.Second,
		},
		Embedder: Embedder{
			URL:       viper.GetString("embedder.url"),
			Dimension: viper.GetInt("embedder.dimension"),
		},
		Qdrant: Qdrant{
			Host:       viper.GetString("qdrant.host"),
			Port:       viper.GetInt("qdrant.port"),
			Collection: viper.GetString("qdrant.collection"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
