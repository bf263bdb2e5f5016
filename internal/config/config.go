package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// Optimizer 优化器参数，既可以单独从 OPTIMIZER_ 前缀的环境变量中读取（命令行工具），
// 也作为服务配置的一部分为 worker 提供默认值
type Optimizer struct {
	PopulationSize    int     `env:"POPULATION_SIZE" envDefault:"50" validate:"gt=0"`
	Generations       int     `env:"GENERATIONS" envDefault:"100" validate:"gt=0"`
	Workers           int     `env:"WORKERS" envDefault:"1" validate:"gt=0"`
	Clonator          string  `env:"CLONATOR" envDefault:"basic" validate:"required"`
	Mutator           string  `env:"MUTATOR" envDefault:"basic" validate:"required"`
	Selector          string  `env:"SELECTOR" envDefault:"basic" validate:"required"`
	AffinityThreshold float64 `env:"AFFINITY_THRESHOLD" envDefault:"0" validate:"gte=0"`
	SelectType        string  `env:"SELECT_TYPE" envDefault:"positive" validate:"oneof=positive negative"`
	CloneCount        int     `env:"CLONE_COUNT" envDefault:"5" validate:"gt=0"`
	MutationCount     int     `env:"MUTATION_COUNT" envDefault:"5" validate:"gt=0"`
	Seed              int64   `env:"SEED" envDefault:"0"` // 0 表示使用随机种子
	OutputDirectory   string  `env:"OUTPUT_DIRECTORY" envDefault:"output" validate:"required"`
}

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD,required"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN,required"`
		SMTP       struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	Progress struct {
		Expiration int `env:"EXPIRATION" envDefault:"86400"` // 运行进度在 redis 中保留 1 天
	} `envPrefix:"PROGRESS_"`
	Optimizer Optimizer `envPrefix:"OPTIMIZER_"`
	NewUser struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_USER_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.Optimizer.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOptimizerConfig 只读取优化器参数，不要求服务相关的环境变量存在
func LoadOptimizerConfig() (*Optimizer, error) {
	cfg := &Optimizer{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "OPTIMIZER_"}); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, aggErr.Errors[0])
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验优化器参数，策略名称是否存在在构造策略时才检查
func (o *Optimizer) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return nil
}

// RunParameters 转换为一次运行的参数
func (o *Optimizer) RunParameters() domain.RunParameters {
	return domain.RunParameters{
		PopulationSize:    o.PopulationSize,
		Generations:       o.Generations,
		Clonator:          o.Clonator,
		Mutator:           o.Mutator,
		Selector:          o.Selector,
		AffinityThreshold: o.AffinityThreshold,
		SelectType:        o.SelectType,
		CloneCount:        o.CloneCount,
		MutationCount:     o.MutationCount,
		Seed:              o.Seed,
	}
}
