package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/skipor/lrucached"
	"github.com/skipor/lrucached/cache"
	"github.com/skipor/lrucached/cmd/lrucached/config"
	"github.com/skipor/lrucached/log"
)

const usage = `
Config values merge rules:
1) config file value overrides default
2) command line value overrides any
Options:
`

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s", usage)
		flag.PrintDefaults()
	}
}

func main() {
	conf := parseConfig()
	l := log.NewLogger(conf.LogLevel, conf.LogDestination)
	c := cache.New(l, cache.Config{MaxSize: conf.CacheSize})
	s := &lrucached.Server{
		Addr:    conf.Addr,
		Log:     l,
		Storage: c,
		Workers: conf.Workers,
	}

	l.Debugf("config: %#v", conf)
	l.Infof("serving on %s with %d workers", s.Addr, s.Workers)
	err := s.ListenAndServe()
	l.Fatal("serve error: ", err)
}

// parseConfig reads command flags, reads the config file if any, and
// returns the fully merged, validated configuration.
func parseConfig() config.Parsed {
	l := log.NewLogger(log.DebugLevel, os.Stderr)
	flg := parseFlags()
	fileConf := config.Default()
	if flg.ConfigPath != "" {
		data, err := ioutil.ReadFile(flg.ConfigPath)
		if err != nil {
			l.Fatal("config file read error: ", err)
		}
		if err := json.Unmarshal(data, fileConf); err != nil {
			l.Fatal("config parse error: ", err)
		}
	}
	config.Merge(fileConf, &flg.Config)
	parsed, err := config.Parse(*fileConf)
	if err != nil {
		l.Fatal(err)
	}
	return parsed
}

type flags struct {
	ConfigPath string
	config.Config
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.ConfigPath, "config", "", "path to json config")

	def := config.Default()
	usage := func(usage string, defVal interface{}) string {
		if s, ok := defVal.(string); ok {
			return fmt.Sprintf("%s (default %q)", usage, s)
		}
		return fmt.Sprintf("%s (default %v)", usage, defVal)
	}
	flag.StringVar(&f.Host, "host", "", usage("host address to bind", def.Host))
	flag.IntVar(&f.Port, "port", 0, usage("port num", def.Port))
	flag.StringVar(&f.LogDestination, "log-destination", "", usage("log destination: stderr, stdout or file path", def.LogDestination))
	flag.StringVar(&f.LogLevel, "log-level", "", usage("log level: debug, info, warn, error, fatal", def.LogLevel))
	flag.StringVar(&f.CacheSize, "cache-size", "", usage("cache size: 2g, 64m", def.CacheSize))
	flag.StringVar(&f.MaxItemSize, "max-item-size", "", usage("max item size: 10m, 1024k", def.MaxItemSize))
	flag.IntVar(&f.Workers, "workers", 0, usage("max concurrent connections", def.Workers))
	flag.IntVar(&f.AcceptThreads, "accept-threads", 0, usage("reserved, only one acceptor is ever run", def.AcceptThreads))
	flag.Parse()
	return f
}
