package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lambdahash/internal/platform/logger"
)

// isoDateLayout is the layout of Result.ISODate.
const isoDateLayout = "2006-01-02T15:04:05.000000Z07:00"

// Options configures a Service.
type Options struct {
	Algorithm       Algorithm
	StrictArtifacts bool
	Clock           Clock
	Logger          *zerolog.Logger
}

// Service orchestrates hashing, fingerprinting, and identity resolution into
// one rebuild decision.
//
// The flow:
//  1. Validate the query (before any filesystem access)
//  2. Hash the project directory (mandatory)
//  3. Hash the library directory and manifest file (tolerated when absent)
//  4. Fingerprint the query plus the gathered hashes
//  5. Resolve the artifact path
//
// The result is advisory. The caller compares SHA against the value stored
// by a previous run to decide whether packaging must run.
type Service struct {
	Dirs         *DirectoryHasher
	Files        *FileHasher
	Fingerprints *FingerprintAggregator
	Identities   *IdentityResolver
	Clock        Clock

	log zerolog.Logger
}

// NewService wires the components for the configured algorithm.
func NewService(opts Options) *Service {
	alg := opts.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock()
	}
	log := logger.Named(opts.Logger, "core")

	identities := NewIdentityResolver(clock)
	identities.Strict = opts.StrictArtifacts

	return &Service{
		Dirs:         NewDirectoryHasher(alg),
		Files:        NewFileHasher(alg),
		Fingerprints: NewFingerprintAggregator(alg),
		Identities:   identities,
		Clock:        clock,
		log:          log,
	}
}

// Decide computes the fingerprint of the inputs named by q and the output
// path of the artifact that matches it.
func (s *Service) Decide(ctx context.Context, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fields := q.Clone()

	projectPath := q[KeyProjectPath]
	projectHash, err := s.Dirs.Hash(projectPath)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, notFoundf(KeyProjectPath, err, "project_path")
		}
		return nil, err
	}
	fields[KeyProjectPathHash] = projectHash.String()
	s.log.Debug().Str("path", projectPath).Str("hash", projectHash.String()).Msg("hashed project directory")

	if libPath, ok := q.Optional(KeyLibPath); ok {
		libHash, err := s.Dirs.Hash(libPath)
		switch {
		case err == nil:
			fields[KeyLibPathHash] = libHash.String()
			s.log.Debug().Str("path", libPath).Str("hash", libHash.String()).Msg("hashed library directory")
		case KindOf(err) == KindNotFound:
			s.log.Debug().Str("path", libPath).Msg("library directory absent; omitted from fingerprint")
		default:
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if reqPath, ok := q.Optional(KeyRequirementsFile); ok {
		reqHash, err := s.Files.Hash(reqPath, nil)
		switch {
		case err == nil:
			fields[KeyRequirementsFileHash] = reqHash.String()
			s.log.Debug().Str("path", reqPath).Str("hash", reqHash.String()).Msg("hashed requirements file")
		case KindOf(err) == KindNotFound:
			s.log.Debug().Str("path", reqPath).Msg("requirements file absent; omitted from fingerprint")
		default:
			return nil, err
		}
	}

	fingerprint := s.Fingerprints.Fingerprint(fields)

	name := q[KeyName]
	artifact, err := s.Identities.Resolve(q[KeyOutputPath], name)
	if err != nil {
		return nil, err
	}
	if artifact.Ambiguous() {
		s.log.Warn().Str("name", name).Strs("candidates", artifact.Candidates).
			Msg("multiple artifacts match; minted a new identifier")
	}
	s.log.Debug().Str("name", name).Str("path", artifact.Path).Bool("reused", artifact.Reused).
		Str("sha", fingerprint.String()).Msg("resolved artifact")

	return &Result{
		SHA:            fingerprint.String(),
		OutputFilepath: artifact.Path,
		ISODate:        s.now().UTC().Format(isoDateLayout),
	}, nil
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
