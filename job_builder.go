package batchcsv

import "fmt"

type jobBuilder struct {
	name           string
	steps          []Step
	jobListeners   []JobListener
	stepListeners  []StepListener
	chunkListeners []ChunkListener
	incrementer    JobParametersIncrementer
}

//NewJob new instance of job builder
func NewJob(name string, steps ...Step) *jobBuilder {
	if name == "" {
		panic("job name must not be empty")
	}
	builder := &jobBuilder{
		name:  name,
		steps: steps,
	}
	return builder
}

func (builder *jobBuilder) Step(step ...Step) *jobBuilder {
	builder.steps = append(builder.steps, step...)
	return builder
}

//Listener register job, step or chunk listeners, step and chunk listeners apply to every step of the job
func (builder *jobBuilder) Listener(listener ...interface{}) *jobBuilder {
	for _, l := range listener {
		valid := false
		if jl, ok := l.(JobListener); ok {
			builder.jobListeners = append(builder.jobListeners, jl)
			valid = true
		}
		if sl, ok := l.(StepListener); ok {
			builder.stepListeners = append(builder.stepListeners, sl)
			valid = true
		}
		if cl, ok := l.(ChunkListener); ok {
			builder.chunkListeners = append(builder.chunkListeners, cl)
			valid = true
		}
		if !valid {
			panic(fmt.Sprintf("not supported listener:%+v for job:%v", l, builder.name))
		}
	}
	return builder
}

func (builder *jobBuilder) Incrementer(incrementer JobParametersIncrementer) *jobBuilder {
	builder.incrementer = incrementer
	return builder
}

func (builder *jobBuilder) Build() Job {
	if len(builder.steps) == 0 {
		panic(fmt.Sprintf("job:%v has no step", builder.name))
	}
	for _, sl := range builder.stepListeners {
		for _, step := range builder.steps {
			step.addListener(sl)
		}
	}
	for _, cl := range builder.chunkListeners {
		for _, step := range builder.steps {
			if chkStep, ok := step.(*chunkStep); ok {
				chkStep.addChunkListener(cl)
			}
		}
	}
	return &simpleJob{
		name:        builder.name,
		steps:       builder.steps,
		listeners:   builder.jobListeners,
		incrementer: builder.incrementer,
	}
}
