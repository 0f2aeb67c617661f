package tracing

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// TracingIngress opens a server span per request, continuing a trace
// from the inbound headers when one is present. Spans are named by the
// matched route pattern so loop and template ids do not explode the
// span cardinality.
func TracingIngress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tracer := opentracing.GlobalTracer()
		spanCtx, _ := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(ctx.Request.Header))

		operation := ctx.FullPath()
		if operation == "" {
			operation = ctx.Request.URL.Path
		}
		serverSpan := tracer.StartSpan(ctx.Request.Method+" "+operation, ext.RPCServerOption(spanCtx))
		defer serverSpan.Finish()

		ext.HTTPMethod.Set(serverSpan, ctx.Request.Method)
		ext.HTTPUrl.Set(serverSpan, ctx.Request.URL.Path)

		ctx.Request = ctx.Request.WithContext(opentracing.ContextWithSpan(ctx.Request.Context(), serverSpan))

		ctx.Next()

		ext.HTTPStatusCode.Set(serverSpan, uint16(ctx.Writer.Status()))
		if ctx.Writer.Status() >= 500 {
			ext.Error.Set(serverSpan, true)
		}
	}
}
