package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Configuration struct {
	Server struct {
		Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
		Port string `envconfig:"SERVER_PORT" default:"8080"`
	}
	Database struct {
		Address      string `envconfig:"MONGO_ADDRESS" default:"mongodb://localhost:27017"`
		DatabaseName string `envconfig:"MONGO_DATABASE" default:"chess"`
		Collection   string `envconfig:"MONGO_COLLECTION" default:"positions"`
		// InMemory keeps positions in process instead of mongo
		InMemory bool `envconfig:"STORAGE_IN_MEMORY" default:"false"`
	}
	Redis struct {
		URL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	}
	Jobs struct {
		MaxGames int `envconfig:"JOBS_MAX_GAMES" default:"50"`
	}
	Stockfish StockfishConfiguration
	Lichess   LichessConfiguration
}

type StockfishConfiguration struct {
	Path  string   `envconfig:"STOCKFISH_PATH" default:"stockfish"`
	Args  []string `envconfig:"STOCKFISH_ARGS"`
	Depth int      `envconfig:"STOCKFISH_DEPTH" default:"10"`
}

type LichessConfiguration struct {
	URL string `envconfig:"LICHESS_URL" default:"https://lichess.org"`
}

type ScraperConfiguration struct {
	// Source is "live" for the TV feed or "pgn" for PGNFile
	Source  string `envconfig:"SCRAPER_SOURCE" default:"live"`
	PGNFile string `envconfig:"SCRAPER_PGN_FILE"`

	Database struct {
		Address      string `envconfig:"MONGO_ADDRESS" default:"mongodb://localhost:27017"`
		DatabaseName string `envconfig:"MONGO_DATABASE" default:"chess"`
		Collection   string `envconfig:"MONGO_COLLECTION" default:"positions"`
	}
	Stockfish StockfishConfiguration
	Lichess   LichessConfiguration
}

type TrainerConfiguration struct {
	ProviderURL string `envconfig:"TRAINER_PROVIDER_URL" default:"http://localhost:8080"`
	User        string `envconfig:"TRAINER_USER"`
	StudyID     string `envconfig:"TRAINER_STUDY_ID"`
	Mode        string `envconfig:"TRAINER_MODE" default:"puzzles"`
	Tolerance   int    `envconfig:"TRAINER_TOLERANCE" default:"50"`
}

func InitConfig() (*Configuration, error) {
	config := &Configuration{}
	err := envconfig.Process("", config)
	return config, err
}

func InitScraperConfig() (*ScraperConfiguration, error) {
	config := &ScraperConfiguration{}
	err := envconfig.Process("", config)
	return config, err
}

func InitTrainerConfig() (*TrainerConfiguration, error) {
	config := &TrainerConfiguration{}
	err := envconfig.Process("", config)
	return config, err
}
