package runtime

import (
	_c "context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"tablestream/lib/checkpoint"
	"tablestream/lib/component"
	"tablestream/lib/context"
	"tablestream/lib/emit"
	"tablestream/lib/log"
	"tablestream/lib/metrics"
	"tablestream/lib/properties"
	"tablestream/lib/runtime/task"
	"tablestream/pkg/constant"
	"tablestream/stream"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"gopkg.in/tomb.v2"
)

const (
	SourcePrefix   = "source"
	OperatorPrefix = "operator"
	SinkPrefix     = "sink"
)

var (
	propertiesDef = stream.PropertiesDef{
		constant.RuntimeLogLevelProperty,
		constant.RuntimeLogEncoderProperty,
		constant.RuntimeStatusDirProperty,
		constant.RuntimeMetricsAddrProperty,
	}
)

type Runtime struct {
	ctx           stream.Context
	logger        stream.Logger
	runtime       stream.Properties
	life          *tomb.Tomb
	checkpoint    *checkpoint.Store
	sourceTasks   map[stream.Context]*task.SourceTask
	operatorTasks map[stream.Context]*task.OperatorTask
	sinkTasks     map[stream.Context]*task.SinkTask

	//drained is closed once every source ended, flushed once every operator closed after that
	drained chan struct{}
	flushed chan struct{}

	allEmitNext map[stream.Context]stream.EmitGenerator
	topology    map[stream.Context][]stream.Context

	failOnce sync.Once
	failure  error
}

func (e *Runtime) initSources() error {
	sourceNames := e.ctx.Properties().PrefixKeys(SourcePrefix)
	if len(sourceNames) == 0 {
		return errors.New("source has to have at least one")
	}
	for _, name := range sourceNames {
		sourceName := SourcePrefix + "." + name
		sourceCtx := e.ctx.Named(sourceName)
		if sourceCtx.Properties() == nil {
			return errors.Errorf("source %s properties can't be nil", sourceName)
		}
		newSource, err := component.NewSourceFunc(sourceCtx.Properties().GetString(constant.TypeProperty))
		if err != nil {
			return err
		}
		source := newSource()
		renderText, err := properties.InitAndRender(sourceCtx.Properties(), append(source.PropertiesDef(), constant.SelectorProperty))
		if err != nil {
			return errors.WithMessagef(err, "failed to init %s properties", sourceName)
		}
		e.logger.Infof("init %s:\n%s", sourceName, renderText)
		e.sourceTasks[sourceCtx] = &task.SourceTask{
			Source: source,
			Ctx:    sourceCtx,
			Name:   sourceName,
		}
	}
	return nil
}

func (e *Runtime) initOperators() error {
	for _, name := range e.ctx.Properties().PrefixKeys(OperatorPrefix) {
		operatorName := OperatorPrefix + "." + name
		operatorCtx := e.ctx.Named(operatorName)
		if operatorCtx.Properties() == nil {
			return errors.Errorf("operator %s properties can't be nil", operatorName)
		}
		newOperator, err := component.NewOperatorFunc(operatorCtx.Properties().GetString(constant.TypeProperty))
		if err != nil {
			return err
		}
		operator := newOperator()
		renderText, err := properties.InitAndRender(operatorCtx.Properties(), append(operator.PropertiesDef(), constant.SelectorProperty))
		if err != nil {
			return errors.WithMessagef(err, "failed to init %s properties", operatorName)
		}
		e.logger.Infof("init %s:\n%s", operatorName, renderText)
		operatorTask := &task.OperatorTask{
			Operator: operator,
			Ctx:      operatorCtx,
			Drained:  e.drained,
		}
		e.operatorTasks[operatorCtx] = operatorTask
		e.allEmitNext[operatorCtx] = operatorTask.GenerateEmit
	}
	return nil
}

func (e *Runtime) initSinks() error {
	sinkNames := e.ctx.Properties().PrefixKeys(SinkPrefix)
	if len(sinkNames) == 0 {
		return errors.New("sink has to have at least one")
	}
	for _, name := range sinkNames {
		sinkName := SinkPrefix + "." + name
		sinkCtx := e.ctx.Named(sinkName)
		if sinkCtx.Properties() == nil {
			return errors.Errorf("sink %s properties can't be nil", sinkName)
		}
		newSink, err := component.NewSinkFunc(sinkCtx.Properties().GetString(constant.TypeProperty))
		if err != nil {
			return err
		}
		sink := newSink()
		renderText, err := properties.InitAndRender(sinkCtx.Properties(), sink.PropertiesDef())
		if err != nil {
			return errors.WithMessagef(err, "failed to init %s properties", sinkName)
		}
		e.logger.Infof("init %s:\n%s", sinkName, renderText)
		sinkTask := &task.SinkTask{
			Sink:    sink,
			Ctx:     sinkCtx,
			Drained: e.flushed,
		}
		e.sinkTasks[sinkCtx] = sinkTask
		e.allEmitNext[sinkCtx] = sinkTask.GenerateEmit
	}
	return nil
}

func (e *Runtime) initTopology() error {
	for _, operatorTask := range e.operatorTasks {
		emitNext, err := e.generateEmitNext(operatorTask.Ctx)
		if err != nil {
			return err
		}
		operatorTask.EmitNext = emitNext
	}
	for _, sourceTask := range e.sourceTasks {
		emitNext, err := e.generateEmitNext(sourceTask.Ctx)
		if err != nil {
			return err
		}
		sourceTask.EmitNext = emitNext
	}
	return nil
}

func (e *Runtime) generateEmitNext(ctx stream.Context) (emitNext stream.EmitNext, err error) {
	newGenerator, err := emit.NewEmitNextGeneratorFunc(ctx.Properties().GetString(constant.SelectorProperty))
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%s can't generate emit: %v", ctx.Name(), r)
		}
	}()
	return newGenerator()(ctx, e.allEmitNext, e.topology), nil
}

func (e *Runtime) initCheckpoint() error {
	statusDir := e.runtime.GetString(constant.RuntimeStatusDirProperty)
	if statusDir == "" {
		e.logger.Warn("status-dir is empty, snapshots are disabled.")
		return nil
	}
	store, err := checkpoint.Open(statusDir)
	if err != nil {
		return err
	}
	e.checkpoint = store
	for _, sourceTask := range e.sourceTasks {
		sourceTask.Checkpoint = store
	}
	return nil
}

func (e *Runtime) serveMetrics() {
	addr := e.runtime.GetString(constant.RuntimeMetricsAddrProperty)
	if addr == "" {
		return
	}
	metrics.Initialize()
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: router}
	e.life.Go(func() error {
		go func() {
			<-e.ctx.Done()
			_ = server.Close()
		}()
		e.logger.Infow("serving metrics.", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.fail(errors.WithMessage(err, "metrics server"))
			e.ctx.Cancel()
		}
		return nil
	})
}

func (e *Runtime) notifySignal() {
	e.life.Go(func() error {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		defer signal.Stop(c)
		select {
		case s := <-c:
			e.logger.Infof("notify system signal %s, done.", s)
			e.ctx.Cancel()
		case <-e.ctx.Done():
			e.logger.Warn("context done.")
		}
		return nil
	})
}

func (e *Runtime) fail(err error) {
	e.failOnce.Do(func() { e.failure = err })
}

//Run build every component, start them and block until the runtime is cancelled
//or any task ends. The first task error is returned.
func (e *Runtime) Run() error {
	defer e.ctx.Cancel()
	for _, step := range []func() error{e.initSources, e.initOperators, e.initSinks, e.initTopology, e.initCheckpoint} {
		if err := step(); err != nil {
			return err
		}
	}
	defer e.closeCheckpoint()

	if err := e.startAll(); err != nil {
		return err
	}
	e.notifySignal()
	e.serveMetrics()
	e.runAll()
	<-e.life.Dead()
	return e.failure
}

//startAll open downstream components first, so no source emits into an unopened sink.
//When one fails to open, those already opened are closed in reverse order.
func (e *Runtime) startAll() (err error) {
	var opened []stream.Component
	defer func() {
		if err == nil {
			return
		}
		for i := len(opened) - 1; i >= 0; i-- {
			if cErr := opened[i].Close(); cErr != nil {
				e.logger.Warnw("failed to close component after start failure.", "err", cErr)
			}
		}
	}()

	for ctx, sinkTask := range e.sinkTasks {
		if err := sinkTask.Start(); err != nil {
			return errors.WithMessagef(err, "failed to open %s", ctx.Name())
		}
		opened = append(opened, sinkTask)
	}
	for ctx, operatorTask := range e.operatorTasks {
		if err := operatorTask.Start(); err != nil {
			return errors.WithMessagef(err, "failed to open %s", ctx.Name())
		}
		opened = append(opened, operatorTask)
	}
	for _, sourceTask := range e.sourceTasks {
		if err := sourceTask.Start(); err != nil {
			return errors.WithMessagef(err, "failed to open %s", sourceTask.Name)
		}
		opened = append(opened, sourceTask)
	}
	return nil
}

func (e *Runtime) runAll() {
	run := func(kind, name string, f func() error) {
		e.life.Go(func() error {
			e.logger.Infow("starting run task.", "kind", kind, "task", name)
			if err := f(); err != nil {
				e.logger.Errorw("failed run task.", "kind", kind, "task", name, "err", err)
				e.fail(errors.WithMessage(err, name))
			} else {
				e.logger.Infow("task is complete.", "kind", kind, "task", name)
			}
			e.ctx.Cancel()
			return nil
		})
	}

	for ctx, sinkTask := range e.sinkTasks {
		run("sink", ctx.Name(), sinkTask.Run)
	}
	var operators sync.WaitGroup
	for ctx, operatorTask := range e.operatorTasks {
		operators.Add(1)
		_task := operatorTask
		run("operator", ctx.Name(), func() error {
			defer operators.Done()
			return _task.Run()
		})
	}

	var sources sync.WaitGroup
	for _, sourceTask := range e.sourceTasks {
		sources.Add(1)
		_task := sourceTask
		run("source", _task.Name, func() error {
			defer sources.Done()
			return _task.Run()
		})
	}
	go func() {
		sources.Wait()
		close(e.drained)
		operators.Wait()
		close(e.flushed)
	}()
}

func (e *Runtime) closeCheckpoint() {
	if e.checkpoint == nil {
		return
	}
	if err := e.checkpoint.Close(); err != nil {
		e.logger.Warnw("can't close checkpoint store.", "err", err)
	}
}

//New read the configuration file and set up logging from its global section.
func New(originCtx _c.Context, propertiesName string, propertiesType string, propertiesPath ...string) (*Runtime, error) {
	ps, err := properties.New(propertiesName, propertiesType, propertiesPath...)
	if err != nil {
		return nil, err
	}
	return NewWithProperties(originCtx, ps)
}

func NewWithProperties(originCtx _c.Context, ps stream.Properties) (*Runtime, error) {
	initAndRender, err := properties.InitAndRender(ps.Global(), propertiesDef)
	if err != nil {
		return nil, errors.WithMessage(err, "can't init runtime properties")
	}
	log.Setup(log.DefaultOptions().
		WithLevel(ps.Global().GetString(constant.RuntimeLogLevelProperty)).
		WithOutputEncoder(log.OutputEncoder(ps.Global().GetString(constant.RuntimeLogEncoderProperty))))
	ctx := context.New(originCtx, ps)
	logger := log.Ctx(ctx)
	logger.Infof("global:\n%s", initAndRender)

	life, _ := tomb.WithContext(ctx.Ctx())
	return &Runtime{
		logger:        logger,
		sourceTasks:   map[stream.Context]*task.SourceTask{},
		operatorTasks: map[stream.Context]*task.OperatorTask{},
		sinkTasks:     map[stream.Context]*task.SinkTask{},
		drained:       make(chan struct{}),
		flushed:       make(chan struct{}),
		allEmitNext:   map[stream.Context]stream.EmitGenerator{},
		topology:      map[stream.Context][]stream.Context{},
		runtime:       ps.Global(),
		life:          life,
		ctx:           ctx,
	}, nil
}
