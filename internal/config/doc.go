// Package config provides configuration for running analysis notebooks and
// publishing their summaries. Values come from defaults, the optional
// .nbsummary.yaml file and CLI flags, in that order of precedence from
// lowest to highest.
package config
