package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Configuration provides type-safe access to application settings
type Configuration struct {
	viper *viper.Viper
}

// setDefaults applies the default settings shared by all constructors
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.temp_dir", "temp")
	v.SetDefault("server.max_upload_mb", 512)

	v.SetDefault("ffmpeg.path", "ffmpeg")

	v.SetDefault("whisper.model_size", "medium")
	v.SetDefault("whisper.precision", "float16")
	v.SetDefault("whisper.batch_size", 8)
	v.SetDefault("whisper.runner", "speechscope-transcribe")

	v.SetDefault("align.runner", "speechscope-align")

	v.SetDefault("diarization.runner", "speechscope-diarize")
	v.SetDefault("diarization.hf_token", "")

	v.SetDefault("emotion.encoder_runner", "speechscope-encode")
	v.SetDefault("emotion.encoder_model", "microsoft/wavlm-base-plus")
	v.SetDefault("emotion.checkpoint_path", "models/emotion_classifier.json")

	v.SetDefault("report.url", "http://127.0.0.1:11434")
	v.SetDefault("report.model", "qwen2.5:3b")
	v.SetDefault("report.timeout_sec", 120)

	v.SetDefault("device.force_cpu", false)
}

// NewConfiguration creates a new Configuration instance with default settings
func NewConfiguration() *Configuration {
	v := viper.New()
	setDefaults(v)
	return &Configuration{viper: v}
}

// NewConfigurationFromFile creates a Configuration instance from a config file
func NewConfigurationFromFile(configFile string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	return &Configuration{viper: v}, nil
}

// NewConfigurationFromEnv creates a Configuration instance that reads from environment variables
func NewConfigurationFromEnv() (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SPEECHSCOPE")
	v.AutomaticEnv()

	v.BindEnv("server.addr", "SPEECHSCOPE_ADDR")
	v.BindEnv("server.temp_dir", "SPEECHSCOPE_TEMP_DIR")
	v.BindEnv("whisper.model_size", "SPEECHSCOPE_WHISPER_MODEL")
	v.BindEnv("diarization.hf_token", "HF_TOKEN")
	v.BindEnv("emotion.checkpoint_path", "SPEECHSCOPE_EMOTION_CHECKPOINT")
	v.BindEnv("report.url", "SPEECHSCOPE_REPORT_URL")
	v.BindEnv("report.model", "SPEECHSCOPE_REPORT_MODEL")
	v.BindEnv("device.force_cpu", "SPEECHSCOPE_FORCE_CPU")

	return &Configuration{viper: v}, nil
}

// GetServerAddr returns the listen address for the HTTP API
func (c *Configuration) GetServerAddr() string {
	return c.viper.GetString("server.addr")
}

// GetTempDir returns the directory for request-scoped temporary files
func (c *Configuration) GetTempDir() string {
	return c.viper.GetString("server.temp_dir")
}

// GetMaxUploadMB returns the upload size cap in megabytes
func (c *Configuration) GetMaxUploadMB() int {
	return c.viper.GetInt("server.max_upload_mb")
}

// GetFFmpegPath returns the ffmpeg binary path
func (c *Configuration) GetFFmpegPath() string {
	return c.viper.GetString("ffmpeg.path")
}

// GetWhisperModelSize returns the speech model size identifier
func (c *Configuration) GetWhisperModelSize() string {
	return c.viper.GetString("whisper.model_size")
}

// GetWhisperPrecision returns the compute precision for the speech model
func (c *Configuration) GetWhisperPrecision() string {
	return c.viper.GetString("whisper.precision")
}

// GetWhisperBatchSize returns the inference batch size
func (c *Configuration) GetWhisperBatchSize() int {
	return c.viper.GetInt("whisper.batch_size")
}

// GetWhisperRunner returns the transcription runner command
func (c *Configuration) GetWhisperRunner() string {
	return c.viper.GetString("whisper.runner")
}

// GetAlignRunner returns the alignment runner command
func (c *Configuration) GetAlignRunner() string {
	return c.viper.GetString("align.runner")
}

// GetDiarizationRunner returns the diarization runner command
func (c *Configuration) GetDiarizationRunner() string {
	return c.viper.GetString("diarization.runner")
}

// GetHFToken returns the Hugging Face token used by the diarization model
func (c *Configuration) GetHFToken() string {
	return c.viper.GetString("diarization.hf_token")
}

// GetEncoderRunner returns the audio encoder runner command
func (c *Configuration) GetEncoderRunner() string {
	return c.viper.GetString("emotion.encoder_runner")
}

// GetEncoderModel returns the pretrained encoder identifier
func (c *Configuration) GetEncoderModel() string {
	return c.viper.GetString("emotion.encoder_model")
}

// GetEmotionCheckpointPath returns the emotion classifier checkpoint path
func (c *Configuration) GetEmotionCheckpointPath() string {
	return c.viper.GetString("emotion.checkpoint_path")
}

// GetReportURL returns the base URL of the report generator service
func (c *Configuration) GetReportURL() string {
	return c.viper.GetString("report.url")
}

// GetReportModel returns the model name used for report generation
func (c *Configuration) GetReportModel() string {
	return c.viper.GetString("report.model")
}

// GetReportTimeoutSec returns the report generation timeout in seconds
func (c *Configuration) GetReportTimeoutSec() int {
	return c.viper.GetInt("report.timeout_sec")
}

// GetForceCPU reports whether accelerator detection should be skipped
func (c *Configuration) GetForceCPU() bool {
	return c.viper.GetBool("device.force_cpu")
}
