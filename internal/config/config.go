package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Handy struct {
		BaseURL string
		Key     string
	}
	LLM struct {
		URL        string
		Model      string
		TimeoutSec int
	}
	Eleven struct {
		APIKey  string
		VoiceID string
	}
	Loop struct {
		TickMs        int
		SendTimeoutMs int
	}
	Pattern struct {
		MilkingRampTicks int
		EdgeBuildTicks   int
		EdgeTeaseTicks   int
		EdgeHoldTicks    int
		EdgeDipTicks     int
	}
	UI struct {
		TokenSecret   string
		TokenExpMin   int
		TokenSkewSecs int
	}
	Settings struct {
		FilePath string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("handy.base_url", "https://www.handyfeeling.com/api/handy/v2")

	v.SetDefault("llm.url", "http://127.0.0.1:1234/v1/chat/completions")
	v.SetDefault("llm.model", "nous-hermes-2-mistral-7b-dpo")
	v.SetDefault("llm.timeout_sec", 120)

	v.SetDefault("loop.tick_ms", 400)
	v.SetDefault("loop.send_timeout_ms", 1500)

	v.SetDefault("pattern.milking_ramp_ticks", 12)
	v.SetDefault("pattern.edge_build_ticks", 8)
	v.SetDefault("pattern.edge_tease_ticks", 6)
	v.SetDefault("pattern.edge_hold_ticks", 4)
	v.SetDefault("pattern.edge_dip_ticks", 6)

	v.SetDefault("ui.token_exp_min", 720)
	v.SetDefault("ui.token_skew_secs", 30)

	v.SetDefault("settings.file_path", "my_settings.json")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("handy.base_url", "HANDY_BASE_URL")
	v.BindEnv("handy.key", "HANDY_KEY")

	v.BindEnv("llm.url", "LLM_URL")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("llm.timeout_sec", "LLM_TIMEOUT_SEC")

	v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")

	v.BindEnv("loop.tick_ms", "LOOP_TICK_MS")
	v.BindEnv("loop.send_timeout_ms", "LOOP_SEND_TIMEOUT_MS")

	v.BindEnv("pattern.milking_ramp_ticks", "PATTERN_MILKING_RAMP_TICKS")
	v.BindEnv("pattern.edge_build_ticks", "PATTERN_EDGE_BUILD_TICKS")
	v.BindEnv("pattern.edge_tease_ticks", "PATTERN_EDGE_TEASE_TICKS")
	v.BindEnv("pattern.edge_hold_ticks", "PATTERN_EDGE_HOLD_TICKS")
	v.BindEnv("pattern.edge_dip_ticks", "PATTERN_EDGE_DIP_TICKS")

	v.BindEnv("ui.token_secret", "UI_TOKEN_SECRET")
	v.BindEnv("ui.token_exp_min", "UI_TOKEN_EXP_MIN")
	v.BindEnv("ui.token_skew_secs", "UI_TOKEN_SKEW_SECS")

	v.BindEnv("settings.file_path", "SETTINGS_FILE")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Handy.BaseURL = v.GetString("handy.base_url")
	c.Handy.Key = v.GetString("handy.key")

	c.LLM.URL = v.GetString("llm.url")
	c.LLM.Model = v.GetString("llm.model")
	c.LLM.TimeoutSec = v.GetInt("llm.timeout_sec")

	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")

	c.Loop.TickMs = v.GetInt("loop.tick_ms")
	c.Loop.SendTimeoutMs = v.GetInt("loop.send_timeout_ms")

	c.Pattern.MilkingRampTicks = v.GetInt("pattern.milking_ramp_ticks")
	c.Pattern.EdgeBuildTicks = v.GetInt("pattern.edge_build_ticks")
	c.Pattern.EdgeTeaseTicks = v.GetInt("pattern.edge_tease_ticks")
	c.Pattern.EdgeHoldTicks = v.GetInt("pattern.edge_hold_ticks")
	c.Pattern.EdgeDipTicks = v.GetInt("pattern.edge_dip_ticks")

	c.UI.TokenSecret = v.GetString("ui.token_secret")
	c.UI.TokenExpMin = v.GetInt("ui.token_exp_min")
	c.UI.TokenSkewSecs = v.GetInt("ui.token_skew_secs")

	c.Settings.FilePath = v.GetString("settings.file_path")

	log.Printf("config loaded: port=%s llm=%s tick=%dms", c.Server.Port, c.LLM.URL, c.Loop.TickMs)
	return c
}

func toString(v any) string { return fmt.Sprint(v) }
