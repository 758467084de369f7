package tabletop

import (
	"os"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// defaultLogger builds the logger used when EngineConfig.Log is nil.
func defaultLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetFormatter(&prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	return l.WithField("prefix", "tabletop")
}
