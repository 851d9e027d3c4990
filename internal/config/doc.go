// Package config loads statikapi project configuration.
//
// A project root is the nearest directory containing one of
// statikapi.json, statikapi.jsonc, statikapi.yaml or statikapi.yml. The
// JSON forms accept comments and trailing commas. A project without a
// config file runs with the defaults.
//
// # Configuration File Structure
//
//	{
//	  // where endpoint modules live
//	  "srcDir": "src-api",
//	  "outDir": "api-out",
//	  "pretty": false,
//	  "dev": {
//	    "host": "127.0.0.1",
//	    "port": 8788,
//	    "debounce": "75ms",
//	    "notifyURL": "http://127.0.0.1:5173"
//	  },
//	  "publish": {
//	    "bucket": "my-api",
//	    "prefix": "v1",
//	    "region": "eu-west-1"
//	  },
//	}
//
// srcDir and outDir must be relative, must stay inside the project and
// must differ.
//
// A .env file next to the config is read by Env and handed to endpoint
// modules as process.env.
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.SrcPath(), "->", cfg.OutPath())
package config
