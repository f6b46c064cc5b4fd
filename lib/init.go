package lib

import (
	//source
	_ "tablestream/lib/component/source/aztable"
	_ "tablestream/lib/component/source/mock"

	//operator
	_ "tablestream/lib/component/operator/sample"
	_ "tablestream/lib/component/operator/tengo"

	//sink
	_ "tablestream/lib/component/sink/echo"
	_ "tablestream/lib/component/sink/kafka"
	_ "tablestream/lib/component/sink/nats"

	//emit
	_ "tablestream/lib/emit/replicating"
)
