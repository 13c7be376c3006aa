package cmd

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stleox/beeline/pkg/config"
)

// NewViper creates a new viper instance configured.
func NewViper() *viper.Viper {
	vp := viper.New()

	// read config from a file
	vp.SetConfigName("config") // name of config file (without extension)
	vp.SetConfigType("yaml")   // useful if the given config file does not have the extension in the name
	vp.AddConfigPath(".")      // look for a config in the working directory first
	if home, err := os.UserHomeDir(); err == nil {
		vp.AddConfigPath(home + "/.beeline")
	}

	// read config from environment variables
	vp.SetEnvPrefix("beeline") // env var must start with BEELINE_
	// replace - by _ for environment variable names
	// (eg: the env var for write-key is BEELINE_WRITE_KEY)
	vp.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vp.AutomaticEnv() // read in environment variables that match
	return vp
}

func New(vp *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "beeline",
		Short:         "beeline tracing toolbox",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := vp.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return err
				}
			}
			config.InitLogrus(vp.GetBool("debug"))
			if vp.GetBool("debug") {
				logrus.Debug("enabled debug mode")
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.Bool("debug", false, "Enable debug mode")
	bindFlags(vp, flags, map[string]string{"debug": "debug"})

	root.AddCommand(
		newHeaderCommand(),
		newSampleCommand(),
		newEmitCommand(vp),
	)
	return root
}

// bindFlags binds config keys to the flags of the same meaning.
func bindFlags(vp *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := vp.BindPFlag(key, flags.Lookup(name)); err != nil {
			logrus.WithError(err).WithField("flag", name).Warn("couldn't bind flag")
		}
	}
}

func Execute() {
	// 全局初始化 VP 配置
	vp := NewViper()

	root := New(vp)
	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("beeline failed")
		os.Exit(1)
	}
}
